// Package packed implements a fixed-width integer array stored in 64-bit
// words. Values never span two words: each word holds floor(64/bits) values
// starting at the least significant bit, and the remaining high bits are
// left unused. This is the layout of save.BitStorage, which backs Array.
package packed

import (
	"fmt"

	"github.com/Tnze/go-mc/save"
)

// MaxBits is the widest value an Array can hold.
const MaxBits = 32

// Array is an ordered sequence of fixed-width unsigned integers.
type Array struct {
	// words is shared with storage.
	words   []uint64
	storage *save.BitStorage
	bits    uint8
	length  int
	mask    uint64
}

// New wraps words as an Array of the given width. The logical length is the
// number of values the words can hold.
func New(words []uint64, bits uint8) *Array {
	checkBits(bits)
	per := 64 / int(bits)
	return newArray(words, bits, len(words)*per)
}

// NewLength wraps words as an Array holding exactly length values. It panics
// if words is too short for length values of the width. Extra words are
// dropped.
func NewLength(words []uint64, bits uint8, length int) *Array {
	checkBits(bits)
	need := WordCount(length, bits)
	if len(words) < need {
		panic(fmt.Sprintf("packed: %d words cannot hold %d values of %d bits (need %d)", len(words), length, bits, need))
	}
	return newArray(words[:need], bits, length)
}

// Zeroed returns an Array of length zero values.
func Zeroed(length int, bits uint8) *Array {
	checkBits(bits)
	return newArray(make([]uint64, WordCount(length, bits)), bits, length)
}

// FromValues packs values at the given width. Values wider than bits are
// masked.
func FromValues(values []uint32, bits uint8) *Array {
	a := Zeroed(len(values), bits)
	for i, v := range values {
		a.Set(i, v)
	}
	return a
}

// WordCount returns the number of words needed for length values of bits
// width.
func WordCount(length int, bits uint8) int {
	per := 64 / int(bits)
	return (length + per - 1) / per
}

func newArray(words []uint64, bits uint8, length int) *Array {
	return &Array{
		words:   words,
		storage: save.NewBitStorage(int(bits), length, words),
		bits:    bits,
		length:  length,
		mask:    1<<bits - 1,
	}
}

func checkBits(bits uint8) {
	if bits == 0 || bits > MaxBits {
		panic(fmt.Sprintf("packed: invalid bit width %d", bits))
	}
}

// Get returns the value at index i.
func (a *Array) Get(i int) uint32 {
	a.checkIndex(i)
	return uint32(a.storage.Get(i))
}

// Set stores v at index i. v is truncated to the array's width.
func (a *Array) Set(i int, v uint32) {
	a.checkIndex(i)
	a.storage.Set(i, int(uint64(v)&a.mask))
}

// SetBits re-encodes every value at a new width into a fresh backing array.
// Values that do not fit the new width are truncated.
func (a *Array) SetBits(bits uint8) {
	if bits == a.bits {
		return
	}
	next := Zeroed(a.length, bits)
	for i := range a.length {
		next.Set(i, a.Get(i))
	}
	*a = *next
}

// Bits returns the width of a single value.
func (a *Array) Bits() uint8 {
	return a.bits
}

// Len returns the number of values in the array.
func (a *Array) Len() int {
	return a.length
}

// Words returns the backing words. The slice is shared with the array.
func (a *Array) Words() []uint64 {
	return a.words
}

// Int64s returns a copy of the backing words reinterpreted as signed
// integers, the representation NBT long arrays use.
func (a *Array) Int64s() []int64 {
	out := make([]int64, len(a.words))
	for i, w := range a.words {
		out[i] = int64(w)
	}
	return out
}

// Values decodes every value in order.
func (a *Array) Values() []uint32 {
	out := make([]uint32, a.length)
	for i := range out {
		out[i] = a.Get(i)
	}
	return out
}

// Clone returns a deep copy of the array.
func (a *Array) Clone() *Array {
	words := make([]uint64, len(a.words))
	copy(words, a.words)
	return newArray(words, a.bits, a.length)
}

func (a *Array) checkIndex(i int) {
	if i < 0 || i >= a.length {
		panic(fmt.Sprintf("packed: index %d out of range [0,%d)", i, a.length))
	}
}

// Uint64s converts signed NBT long array words to the unsigned form.
func Uint64s(words []int64) []uint64 {
	out := make([]uint64, len(words))
	for i, w := range words {
		out[i] = uint64(w)
	}
	return out
}
