package donation

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Hackathon-Apps/go-roulette-api/internal/app/chain"
	"github.com/Hackathon-Apps/go-roulette-api/internal/app/metrics"
	"github.com/Hackathon-Apps/go-roulette-api/internal/app/storage"
)

type Indexer interface {
	Transaction(ctx context.Context, hash string) (*chain.Transaction, error)
}

// Ledger persists processed transactions. CreditDonation must record the
// hash and credit the user atomically, returning storage.ErrDuplicateTx when
// the hash is already recorded, and the user's new donation total otherwise.
type Ledger interface {
	ProcessedTxExists(ctx context.Context, hash string) (bool, error)
	CreditDonation(ctx context.Context, hash string, userID int64, amountNano *big.Int) (*big.Int, error)
}

type Receipt struct {
	TxHash           string
	UserID           int64
	ClaimedNano      *big.Int
	AmountNano       *big.Int
	TotalDonatedNano *big.Int
}

type Service struct {
	wallet  string
	indexer Indexer
	ledger  Ledger
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

// NewService builds the donation verifier. An empty wallet disables donations.
func NewService(wallet string, indexer Indexer, ledger Ledger, log logrus.FieldLogger, m *metrics.Metrics) *Service {
	return &Service{
		wallet:  strings.TrimSpace(wallet),
		indexer: indexer,
		ledger:  ledger,
		log:     log,
		metrics: m,
	}
}

func (s *Service) Enabled() bool {
	return s.wallet != ""
}

func (s *Service) Wallet() string {
	return s.wallet
}

// ConfirmTonDonate verifies claim against the indexer and, if it holds,
// credits the on-chain amount to the user exactly once.
func (s *Service) ConfirmTonDonate(ctx context.Context, claim Claim) (*Receipt, error) {
	receipt, err := s.confirm(ctx, claim)

	fields := logrus.Fields{
		"tx_hash": claim.TxHash,
		"user_id": claim.UserID,
		"claimed": FormatTON(claim.ClaimedNano),
	}
	if err != nil {
		reason := Reason(err)
		if s.metrics != nil {
			s.metrics.DonationsRejected.WithLabelValues(reason).Inc()
		}
		entry := s.log.WithFields(fields).WithField("reason", reason).WithError(err)
		if reason == "internal" {
			entry.Error("donation confirmation failed")
		} else {
			entry.Info("donation rejected")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DonationsConfirmed.Inc()
		amount, _ := new(big.Float).SetInt(receipt.AmountNano).Float64()
		s.metrics.DonatedNano.Add(amount)
	}
	s.log.WithFields(fields).WithFields(logrus.Fields{
		"credited": FormatTON(receipt.AmountNano),
		"total":    FormatTON(receipt.TotalDonatedNano),
	}).Info("donation credited")
	return receipt, nil
}

func (s *Service) confirm(ctx context.Context, claim Claim) (*Receipt, error) {
	if !s.Enabled() {
		return nil, ErrDonationsDisabled
	}

	exists, err := s.ledger.ProcessedTxExists(ctx, claim.TxHash)
	if err != nil {
		return nil, fmt.Errorf("check processed tx: %w", err)
	}
	if exists {
		return nil, ErrDuplicateTransaction
	}

	tx, err := s.indexer.Transaction(ctx, claim.TxHash)
	if err != nil {
		verr := &VerificationFailedError{Hash: claim.TxHash, Err: err}
		var lookupErr *chain.LookupFailedError
		if errors.As(err, &lookupErr) {
			verr.Status = lookupErr.Status
		}
		return nil, verr
	}
	if tx == nil || tx.ValueNano == nil {
		return nil, &VerificationFailedError{Hash: claim.TxHash, Err: chain.ErrMalformedTransaction}
	}

	if !chain.SameAddress(tx.Destination, s.wallet) {
		return nil, &DestinationMismatchError{Hash: claim.TxHash, Destination: tx.Destination}
	}

	minRequired := MinAcceptedNano(claim.ClaimedNano)
	if tx.ValueNano.Cmp(minRequired) < 0 {
		return nil, &InsufficientAmountError{
			ActualNano:      new(big.Int).Set(tx.ValueNano),
			MinRequiredNano: minRequired,
		}
	}

	total, err := s.ledger.CreditDonation(ctx, claim.TxHash, claim.UserID, tx.ValueNano)
	if errors.Is(err, storage.ErrDuplicateTx) {
		return nil, ErrDuplicateTransaction
	}
	if err != nil {
		return nil, fmt.Errorf("credit donation: %w", err)
	}

	return &Receipt{
		TxHash:           claim.TxHash,
		UserID:           claim.UserID,
		ClaimedNano:      claim.ClaimedNano,
		AmountNano:       new(big.Int).Set(tx.ValueNano),
		TotalDonatedNano: total,
	}, nil
}
