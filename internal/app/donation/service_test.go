package donation

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"

	"github.com/Hackathon-Apps/go-roulette-api/internal/app/chain"
	"github.com/Hackathon-Apps/go-roulette-api/internal/app/metrics"
	"github.com/Hackathon-Apps/go-roulette-api/internal/app/storage"
)

var (
	walletHex = strings.Repeat("deadbeef", 8)
	wallet    = "0:" + walletHex
	txA       = strings.Repeat("a1b2", 16)
)

type fakeIndexer struct {
	calls atomic.Int32
	tx    *chain.Transaction
	err   error
	hook  func()
}

func (f *fakeIndexer) Transaction(_ context.Context, hash string) (*chain.Transaction, error) {
	f.calls.Add(1)
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return nil, f.err
	}
	tx := *f.tx
	tx.Hash = hash
	return &tx, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	processed map[string]int64
	totals    map[int64]*big.Int
	commitErr error
	commits   int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{processed: map[string]int64{}, totals: map[int64]*big.Int{}}
}

func (f *fakeLedger) ProcessedTxExists(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.processed[hash]
	return ok, nil
}

func (f *fakeLedger) CreditDonation(_ context.Context, hash string, userID int64, amount *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	if _, ok := f.processed[hash]; ok {
		return nil, storage.ErrDuplicateTx
	}
	f.processed[hash] = userID
	f.commits++
	total, ok := f.totals[userID]
	if !ok {
		total = new(big.Int)
		f.totals[userID] = total
	}
	total.Add(total, amount)
	return new(big.Int).Set(total), nil
}

func (f *fakeLedger) total(userID int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.totals[userID]; ok {
		return v.String()
	}
	return "0"
}

func nano(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService(t *testing.T, wallet string, idx *fakeIndexer, ledger *fakeLedger) (*Service, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	return NewService(wallet, idx, ledger, quietLogger(), m), m
}

func mustClaim(t *testing.T, userID int64, hash, amount string) Claim {
	t.Helper()
	claim, err := NewClaim(userID, hash, amount, Limits{})
	require.NoError(t, err)
	return claim
}

func TestConfirmTonDonateCreditsOnChainValue(t *testing.T) {
	idx := &fakeIndexer{tx: &chain.Transaction{Destination: "0:" + strings.ToUpper(walletHex), ValueNano: nano("2500000000")}}
	ledger := newFakeLedger()
	svc, m := newTestService(t, wallet, idx, ledger)

	receipt, err := svc.ConfirmTonDonate(context.Background(), mustClaim(t, 1, txA, "2.5"))
	require.NoError(t, err)
	assert.Equal(t, "2500000000", receipt.AmountNano.String())
	assert.Equal(t, "2500000000", receipt.TotalDonatedNano.String())
	assert.Equal(t, "2500000000", ledger.total(1))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DonationsConfirmed))
}

func TestConfirmTonDonateFriendlyWallet(t *testing.T) {
	raw, err := hex.DecodeString(walletHex)
	require.NoError(t, err)
	friendly := address.NewAddress(0, 0, raw).String()

	idx := &fakeIndexer{tx: &chain.Transaction{Destination: wallet, ValueNano: nano("1000000000")}}
	ledger := newFakeLedger()
	svc, _ := newTestService(t, friendly, idx, ledger)

	_, err = svc.ConfirmTonDonate(context.Background(), mustClaim(t, 1, txA, "1"))
	require.NoError(t, err)
	assert.Equal(t, "1000000000", ledger.total(1))
}

func TestConfirmTonDonateInsufficientAmount(t *testing.T) {
	idx := &fakeIndexer{tx: &chain.Transaction{Destination: wallet, ValueNano: nano("2400000000")}}
	ledger := newFakeLedger()
	svc, m := newTestService(t, wallet, idx, ledger)

	_, err := svc.ConfirmTonDonate(context.Background(), mustClaim(t, 1, txA, "2.5"))
	var insufficient *InsufficientAmountError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "2400000000", insufficient.ActualNano.String())
	assert.Equal(t, "2475000000", insufficient.MinRequiredNano.String())
	assert.Equal(t, 0, ledger.commits)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DonationsRejected.WithLabelValues("insufficient_amount")))
}

func TestConfirmTonDonateDuplicate(t *testing.T) {
	idx := &fakeIndexer{tx: &chain.Transaction{Destination: wallet, ValueNano: nano("2500000000")}}
	ledger := newFakeLedger()
	svc, _ := newTestService(t, wallet, idx, ledger)
	ctx := context.Background()

	_, err := svc.ConfirmTonDonate(ctx, mustClaim(t, 1, txA, "2.5"))
	require.NoError(t, err)

	_, err = svc.ConfirmTonDonate(ctx, mustClaim(t, 1, txA, "2.5"))
	require.ErrorIs(t, err, ErrDuplicateTransaction)

	// another user and another spelling of the same hash
	_, err = svc.ConfirmTonDonate(ctx, mustClaim(t, 2, strings.ToUpper(txA), "2.5"))
	require.ErrorIs(t, err, ErrDuplicateTransaction)

	assert.Equal(t, "2500000000", ledger.total(1))
	assert.Equal(t, "0", ledger.total(2))
	assert.Equal(t, int32(1), idx.calls.Load())
}

func TestConfirmTonDonateDisabled(t *testing.T) {
	idx := &fakeIndexer{tx: &chain.Transaction{Destination: wallet, ValueNano: nano("1")}}
	ledger := newFakeLedger()
	svc, _ := newTestService(t, "  ", idx, ledger)

	assert.False(t, svc.Enabled())
	_, err := svc.ConfirmTonDonate(context.Background(), mustClaim(t, 1, txA, "2.5"))
	require.ErrorIs(t, err, ErrDonationsDisabled)
	assert.Equal(t, int32(0), idx.calls.Load())
	assert.Equal(t, 0, ledger.commits)
}

func TestConfirmTonDonateToleranceBoundary(t *testing.T) {
	cases := []struct {
		actual string
		ok     bool
	}{
		{"99000000000", true},
		{"98990000000", false},
		{"150000000000", true},
	}
	for _, tc := range cases {
		t.Run(tc.actual, func(t *testing.T) {
			idx := &fakeIndexer{tx: &chain.Transaction{Destination: wallet, ValueNano: nano(tc.actual)}}
			ledger := newFakeLedger()
			svc, _ := newTestService(t, wallet, idx, ledger)

			_, err := svc.ConfirmTonDonate(context.Background(), mustClaim(t, 1, txA, "100"))
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.actual, ledger.total(1))
				return
			}
			var insufficient *InsufficientAmountError
			require.True(t, errors.As(err, &insufficient))
			assert.Equal(t, "99000000000", insufficient.MinRequiredNano.String())
			assert.Equal(t, "0", ledger.total(1))
		})
	}
}

func TestConfirmTonDonateDestinationMismatch(t *testing.T) {
	idx := &fakeIndexer{tx: &chain.Transaction{Destination: "0:" + strings.Repeat("0", 64), ValueNano: nano("2500000000")}}
	ledger := newFakeLedger()
	svc, _ := newTestService(t, wallet, idx, ledger)

	_, err := svc.ConfirmTonDonate(context.Background(), mustClaim(t, 1, txA, "2.5"))
	var mismatch *DestinationMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 0, ledger.commits)
}

func TestConfirmTonDonateVerificationFailed(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"not found":   {&chain.LookupFailedError{Hash: txA, Status: 404}, 404},
		"unreachable": {errors.New("dial tcp: connection refused"), 0},
		"malformed":   {chain.ErrMalformedTransaction, 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ledger := newFakeLedger()
			svc, _ := newTestService(t, wallet, &fakeIndexer{err: tc.err}, ledger)

			_, err := svc.ConfirmTonDonate(context.Background(), mustClaim(t, 1, txA, "1"))
			var verr *VerificationFailedError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.status, verr.Status)
			assert.Equal(t, txA, verr.Hash)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, 0, ledger.commits)
		})
	}
}

func TestConfirmTonDonateCommitRaceMapsToDuplicate(t *testing.T) {
	idx := &fakeIndexer{tx: &chain.Transaction{Destination: wallet, ValueNano: nano("1000000000")}}
	ledger := newFakeLedger()
	ledger.commitErr = storage.ErrDuplicateTx
	svc, _ := newTestService(t, wallet, idx, ledger)

	_, err := svc.ConfirmTonDonate(context.Background(), mustClaim(t, 1, txA, "1"))
	require.ErrorIs(t, err, ErrDuplicateTransaction)
}

func TestConfirmTonDonateCommitFailureIsInternal(t *testing.T) {
	idx := &fakeIndexer{tx: &chain.Transaction{Destination: wallet, ValueNano: nano("1000000000")}}
	ledger := newFakeLedger()
	ledger.commitErr = storage.ErrUserNotFound
	svc, m := newTestService(t, wallet, idx, ledger)

	_, err := svc.ConfirmTonDonate(context.Background(), mustClaim(t, 1, txA, "1"))
	require.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.Equal(t, "internal", Reason(err))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DonationsRejected.WithLabelValues("internal")))
}

func TestConfirmTonDonateConcurrentSameHash(t *testing.T) {
	// both requests pass the pre-check before either commits
	var arrived sync.WaitGroup
	arrived.Add(2)
	idx := &fakeIndexer{
		tx: &chain.Transaction{Destination: wallet, ValueNano: nano("2500000000")},
		hook: func() {
			arrived.Done()
			arrived.Wait()
		},
	}
	ledger := newFakeLedger()
	svc, _ := newTestService(t, wallet, idx, ledger)

	claims := []Claim{mustClaim(t, 1, txA, "2.5"), mustClaim(t, 2, txA, "2.5")}
	errs := make(chan error, len(claims))
	for _, claim := range claims {
		go func(claim Claim) {
			_, err := svc.ConfirmTonDonate(context.Background(), claim)
			errs <- err
		}(claim)
	}

	var successes, dupes int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrDuplicateTransaction):
			dupes++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, dupes)
	assert.Equal(t, 1, ledger.commits)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "disabled", Reason(ErrDonationsDisabled))
	assert.Equal(t, "duplicate", Reason(ErrDuplicateTransaction))
	assert.Equal(t, "invalid_amount", Reason(&InvalidAmountError{}))
	assert.Equal(t, "verification_failed", Reason(&VerificationFailedError{Err: io.EOF}))
	assert.Equal(t, "destination_mismatch", Reason(&DestinationMismatchError{}))
	assert.Equal(t, "insufficient_amount", Reason(&InsufficientAmountError{}))
	assert.Equal(t, "internal", Reason(io.EOF))
}
