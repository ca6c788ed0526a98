package storage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/Hackathon-Apps/go-roulette-api/internal/app/config"
)

const uniqueViolation = "23505"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrDuplicateTx  = errors.New("transaction already recorded")
)

type Storage struct {
	conn *gorm.DB
	log  logrus.FieldLogger
}

func New(conn *gorm.DB, log logrus.FieldLogger) *Storage {
	return &Storage{conn: conn, log: log}
}

func Connect(cfg *config.Configuration, log *logrus.Logger) (*Storage, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC connect_timeout=5",
		cfg.DbHost, cfg.DbUser, cfg.DbPass, cfg.DbName, cfg.DbPort,
	)

	logLevel := logger.Warn
	if log.IsLevelEnabled(logrus.DebugLevel) {
		logLevel = logger.Info
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		log.WithError(err).Error("gorm open failed")
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		log.WithError(err).Error("get sql DB failed")
		return nil, err
	}
	for i := 0; i < 12; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		pingErr := sqlDB.PingContext(ctx)
		cancel()
		if pingErr == nil {
			break
		}
		log.WithFields(logrus.Fields{
			"attempt": i + 1, "host": cfg.DbHost, "port": cfg.DbPort,
		}).Warn("postgres not ready, retrying…")
		if i == 11 {
			log.WithError(pingErr).Error("postgres ping failed")
			return nil, pingErr
		}
		time.Sleep(time.Second * time.Duration(i+1))
	}

	log.WithFields(logrus.Fields{
		"host": cfg.DbHost, "port": cfg.DbPort, "user": cfg.DbUser, "db": cfg.DbName,
	}).Info("connected to PostgreSQL")
	return New(conn, log), nil
}

func (s *Storage) Migrate(ctx context.Context) error {
	return s.conn.WithContext(ctx).AutoMigrate(&User{}, &ProcessedTx{})
}

func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Storage) Close() error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertUser creates the user or refreshes its Telegram profile fields.
// Balances are never touched.
func (s *Storage) UpsertUser(ctx context.Context, u *User) error {
	return s.conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "photo_url", "updated_at"}),
		}).
		Omit("total_donated_nano", "coins").
		Create(u).
		Error
}

// SetWallet stores the TON wallet the user connected in the app.
func (s *Storage) SetWallet(ctx context.Context, userID int64, wallet string) error {
	res := s.conn.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Update("wallet_address", wallet)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.conn.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Storage) ProcessedTxExists(ctx context.Context, hash string) (bool, error) {
	var count int64
	if err := s.conn.WithContext(ctx).
		Model(&ProcessedTx{}).
		Where("tx_hash = ?", hash).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreditDonation records hash as processed and adds amount to the user's
// donation total in one transaction. A hash that is already recorded, also
// by a concurrent caller, yields ErrDuplicateTx and changes nothing.
func (s *Storage) CreditDonation(ctx context.Context, hash string, userID int64, amount *big.Int) (*big.Int, error) {
	var total *big.Int
	err := s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &ProcessedTx{TxHash: hash, UserID: userID, AmountNano: NewNano(amount)}
		if err := tx.Create(row).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateTx
			}
			return err
		}

		res := tx.Model(&User{}).
			Where("id = ?", userID).
			Update("total_donated_nano", gorm.Expr("total_donated_nano + CAST(? AS NUMERIC)", amount.String()))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}

		var u User
		if err := tx.Select("total_donated_nano").First(&u, "id = ?", userID).Error; err != nil {
			return err
		}
		total = u.TotalDonatedNano.Int()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

func (s *Storage) ListDonations(ctx context.Context, userID int64, limit, offset int) ([]ProcessedTx, error) {
	var rows []ProcessedTx
	q := s.conn.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("tx_hash")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Storage) CountDonations(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.conn.WithContext(ctx).
		Model(&ProcessedTx{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
