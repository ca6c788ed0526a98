package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

type User struct {
	ID               int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Username         string    `gorm:"size:64" json:"username"`
	FirstName        string    `gorm:"size:128" json:"firstName"`
	PhotoURL         string    `gorm:"size:512" json:"photoUrl"`
	Coins            int64     `gorm:"not null;default:0" json:"coins"`
	TotalDonatedNano Nano      `gorm:"type:numeric(40,0);not null;default:0" json:"totalDonatedNano"`
	WalletAddress    string    `gorm:"size:96" json:"walletAddress"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ProcessedTx marks a chain transaction as credited. The primary key on
// TxHash is what makes crediting idempotent.
type ProcessedTx struct {
	TxHash     string    `gorm:"primaryKey;size:64" json:"txHash"`
	UserID     int64     `gorm:"index;not null" json:"userId"`
	AmountNano Nano      `gorm:"type:numeric(40,0);not null" json:"amountNano"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

func (ProcessedTx) TableName() string {
	return "processed_transactions"
}

// Nano is an arbitrary precision nanoTON amount stored as NUMERIC.
type Nano struct {
	v *big.Int
}

func NewNano(v *big.Int) Nano {
	if v == nil {
		return Nano{}
	}
	return Nano{v: new(big.Int).Set(v)}
}

// Int returns a copy of the amount; a zero Nano yields 0.
func (n Nano) Int() *big.Int {
	if n.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(n.v)
}

func (n Nano) String() string {
	return n.Int().String()
}

func (n Nano) Value() (driver.Value, error) {
	return n.Int().String(), nil
}

func (n *Nano) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.v = nil
		return nil
	case int64:
		n.v = big.NewInt(v)
		return nil
	case float64:
		f := new(big.Float).SetFloat64(v)
		i, _ := f.Int(nil)
		n.v = i
		return nil
	case []byte:
		return n.scanString(string(v))
	case string:
		return n.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Nano", src)
	}
}

func (n *Nano) scanString(s string) error {
	if i, ok := new(big.Int).SetString(s, 10); ok {
		n.v = i
		return nil
	}
	// NUMERIC may come back as "2500000000.0" or in exponent form
	f, _, err := big.ParseFloat(s, 10, 256, big.ToNearestEven)
	if err != nil {
		return fmt.Errorf("cannot scan %q into Nano: %w", s, err)
	}
	n.v, _ = f.Int(nil)
	return nil
}

func (n Nano) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}
