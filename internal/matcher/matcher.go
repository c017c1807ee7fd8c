// Package matcher decides which, if any, transfer event satisfies a payment.
package matcher

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/GoSTEAN/velo-sub001/internal/chain"

	"github.com/holiman/uint256"
)

// ErrMalformed marks an event that cannot be read as a transfer
var ErrMalformed = errors.New("malformed transfer event")

// TransferEvent is a decoded token transfer. From and To are normalized addresses.
type TransferEvent struct {
	TransactionHash string
	BlockNumber     uint64
	From            string
	To              string
	Amount          *uint256.Int
	Raw             chain.Event
}

// Candidate is a transfer to the receiver that fell outside the tolerance
type Candidate struct {
	Transfer           TransferEvent
	RelativeDifference *big.Rat
}

// Result is the outcome of scanning a window of events
type Result struct {
	Match      *TransferEvent
	Closest    *Candidate
	Scanned    int
	ToReceiver int
	Malformed  int
}

// DecodeTransfer reads a Transfer event in either of the two layouts emitted by
// token contracts: data = [from, to, low, high], or keys = [selector, from, to]
// with data = [low, high].
func DecodeTransfer(ev chain.Event) (TransferEvent, error) {
	var from, to, low, high string

	switch {
	case len(ev.Keys) >= 3 && len(ev.Data) >= 2:
		from, to = ev.Keys[1], ev.Keys[2]
		low, high = ev.Data[0], ev.Data[1]
	case len(ev.Data) >= 4:
		from, to = ev.Data[0], ev.Data[1]
		low, high = ev.Data[2], ev.Data[3]
	default:
		return TransferEvent{}, fmt.Errorf("%w: %d keys, %d data fields", ErrMalformed, len(ev.Keys), len(ev.Data))
	}

	if !chain.IsValidAddress(from) || !chain.IsValidAddress(to) {
		return TransferEvent{}, fmt.Errorf("%w: bad address", ErrMalformed)
	}

	amount, err := JoinLimbs(low, high)
	if err != nil {
		return TransferEvent{}, err
	}

	return TransferEvent{
		TransactionHash: ev.TransactionHash,
		BlockNumber:     ev.BlockNumber,
		From:            chain.NormalizeAddress(from),
		To:              chain.NormalizeAddress(to),
		Amount:          amount,
		Raw:             ev,
	}, nil
}

// JoinLimbs reconstructs a u256 from its 128-bit halves: low + high<<128
func JoinLimbs(low, high string) (*uint256.Int, error) {
	lo, err := parseLimb(low)
	if err != nil {
		return nil, fmt.Errorf("%w: low limb: %v", ErrMalformed, err)
	}
	hi, err := parseLimb(high)
	if err != nil {
		return nil, fmt.Errorf("%w: high limb: %v", ErrMalformed, err)
	}

	amount := new(uint256.Int).Lsh(hi, 128)
	return amount.Or(amount, lo), nil
}

// parseLimb accepts a 0x-prefixed hex or a base-10 felt of at most 128 bits.
func parseLimb(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)

	b := new(big.Int)
	var ok bool
	if rest, isHex := cutHexPrefix(s); isHex {
		_, ok = b.SetString(rest, 16)
	} else {
		_, ok = b.SetString(s, 10)
	}
	if !ok || s == "" {
		return nil, fmt.Errorf("cannot parse %q", s)
	}
	if b.Sign() < 0 || b.BitLen() > 128 {
		return nil, fmt.Errorf("%q does not fit in 128 bits", s)
	}

	v, _ := uint256.FromBig(b)
	return v, nil
}

func cutHexPrefix(s string) (string, bool) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:], true
	}
	return s, false
}

// ParseAmount parses a positive base-10 amount that fits in 256 bits
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("amount is empty")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("amount %q is not a base-10 integer", s)
		}
	}

	b, _ := new(big.Int).SetString(s, 10)
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("amount %q does not fit in 256 bits", s)
	}
	if v.IsZero() {
		return nil, errors.New("amount must be greater than zero")
	}
	return v, nil
}

// RelativeDifference returns (observed - expected) / expected exactly. expected must be non-zero.
func RelativeDifference(observed, expected *uint256.Int) *big.Rat {
	e := expected.ToBig()
	diff := new(big.Int).Sub(observed.ToBig(), e)
	return new(big.Rat).SetFrac(diff, e)
}

// Match scans events in order and returns the first transfer to receiver whose
// amount lies within tolerance of expected, inclusive. Malformed events are
// counted and skipped. When nothing matches, the transfer to receiver closest
// to expected is reported for diagnostics only.
func Match(events []chain.Event, expected *uint256.Int, receiver string, tolerance *big.Rat) Result {
	res := Result{Scanned: len(events)}
	if expected == nil || expected.IsZero() {
		return res
	}

	want := chain.NormalizeAddress(receiver)
	var closestAbs *big.Rat

	for _, ev := range events {
		transfer, err := DecodeTransfer(ev)
		if err != nil {
			res.Malformed++
			continue
		}
		if transfer.To != want {
			continue
		}
		res.ToReceiver++

		rel := RelativeDifference(transfer.Amount, expected)
		abs := new(big.Rat).Abs(rel)

		if abs.Cmp(tolerance) <= 0 {
			res.Match = &transfer
			return res
		}

		if closestAbs == nil || abs.Cmp(closestAbs) < 0 {
			closestAbs = abs
			res.Closest = &Candidate{Transfer: transfer, RelativeDifference: rel}
		}
	}

	return res
}
