package donation

import (
	"fmt"
	"math/big"
	"strings"
)

// Category tags a donation with its religious/legal classification. The tag is
// a reporting dimension: every category shares the same accounting rules
// unless a CategoryPolicy attaches stricter ones.
type Category uint8

const (
	CategorySadaqah Category = iota
	CategoryZakat
	CategoryWaqf
)

const categoryCount = 3

// Valid reports whether the category value is within the supported range.
func (c Category) Valid() bool {
	switch c {
	case CategorySadaqah, CategoryZakat, CategoryWaqf:
		return true
	default:
		return false
	}
}

// String returns the canonical uppercase name for the category.
func (c Category) String() string {
	switch c {
	case CategorySadaqah:
		return "SADAQAH"
	case CategoryZakat:
		return "ZAKAT"
	case CategoryWaqf:
		return "WAQF"
	default:
		return fmt.Sprintf("CATEGORY(%d)", uint8(c))
	}
}

// ParseCategory resolves a case-insensitive category name to its enum value.
func ParseCategory(name string) (Category, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SADAQAH":
		return CategorySadaqah, nil
	case "ZAKAT":
		return CategoryZakat, nil
	case "WAQF":
		return CategoryWaqf, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidCategory, name)
	}
}

// Categories lists all supported categories in enum order.
func Categories() []Category {
	return []Category{CategorySadaqah, CategoryZakat, CategoryWaqf}
}

// Pool is a named cause with its own sub-ledger. The handler, when set, is the
// only identity allowed to draw the pool down outside certificate redemption.
type Pool struct {
	Code           string
	Handler        [20]byte
	MinCertAmount  *big.Int
	TotalBalance   *big.Int
	CategoryTotals []*big.Int
	Active         bool
	CreatedAt      uint64
}

// NormalizePoolCode canonicalises a pool code (trimmed, uppercase). Empty
// codes are rejected.
func NormalizePoolCode(code string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		return "", fmt.Errorf("donation: pool code must not be empty")
	}
	return trimmed, nil
}

// Clone returns a deep copy of the pool so callers can safely mutate the copy
// without affecting the stored instance.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.MinCertAmount = cloneAmount(p.MinCertAmount)
	clone.TotalBalance = cloneAmount(p.TotalBalance)
	clone.CategoryTotals = make([]*big.Int, categoryCount)
	for i := range clone.CategoryTotals {
		if i < len(p.CategoryTotals) {
			clone.CategoryTotals[i] = cloneAmount(p.CategoryTotals[i])
		} else {
			clone.CategoryTotals[i] = big.NewInt(0)
		}
	}
	return &clone
}

// CategoryTotal returns the balance currently held under the category.
func (p *Pool) CategoryTotal(c Category) *big.Int {
	if p == nil || !c.Valid() || int(c) >= len(p.CategoryTotals) {
		return big.NewInt(0)
	}
	return cloneAmount(p.CategoryTotals[c])
}

// HasHandler reports whether a fulfillment handler is bound to the pool.
func (p *Pool) HasHandler() bool {
	return p != nil && p.Handler != ([20]byte{})
}

// SanitizePool validates and normalises the supplied pool definition,
// returning a cloned instance with a canonical code and non-nil amount fields.
// The function does not mutate the original value.
func SanitizePool(p *Pool) (*Pool, error) {
	if p == nil {
		return nil, fmt.Errorf("donation: nil pool")
	}
	clone := p.Clone()
	code, err := NormalizePoolCode(clone.Code)
	if err != nil {
		return nil, err
	}
	clone.Code = code
	if clone.MinCertAmount.Sign() < 0 {
		return nil, fmt.Errorf("donation: minimum certificate amount must be non-negative")
	}
	if clone.TotalBalance.Sign() < 0 {
		return nil, fmt.Errorf("donation: pool balance must be non-negative")
	}
	for i, total := range clone.CategoryTotals {
		if total.Sign() < 0 {
			return nil, fmt.Errorf("donation: category %s balance must be non-negative", Category(i))
		}
	}
	return clone, nil
}

// Record captures a single donation. Records are append-only: once written
// they are never mutated or deleted.
type Record struct {
	Sequence  uint64
	Donor     [20]byte
	PoolCode  string
	Category  Category
	Amount    *big.Int
	Timestamp uint64
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Amount = cloneAmount(r.Amount)
	return &clone
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
