package roulette

import "time"

type donateTonRequest struct {
	TxHash string `json:"txHash"`
	Amount string `json:"amount"`
}

type setWalletRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type donateConfigResponse struct {
	Enabled   bool   `json:"enabled"`
	Wallet    string `json:"wallet,omitempty"`
	MinAmount string `json:"minAmount"`
	MaxAmount string `json:"maxAmount"`
}

type profileResponse struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	FirstName        string    `json:"firstName"`
	PhotoURL         string    `json:"photoUrl"`
	Coins            int64     `json:"coins"`
	TotalDonatedTon  string    `json:"totalDonatedTon"`
	TotalDonatedNano string    `json:"totalDonatedNano"`
	WalletAddress    string    `json:"walletAddress"`
	DonationsCount   int64     `json:"donationsCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

type donationItem struct {
	TxHash     string    `json:"txHash"`
	AmountTon  string    `json:"amountTon"`
	AmountNano string    `json:"amountNano"`
	CreatedAt  time.Time `json:"createdAt"`
}

type donationCreditedEvent struct {
	Type             string `json:"type"`
	TxHash           string `json:"txHash"`
	AmountNano       string `json:"amountNano"`
	TotalDonatedNano string `json:"totalDonatedNano"`
}
