package game

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	idDigits = "0123456789"

	DefaultIDLength = 5
	minIDLength     = 3
	maxIDLength     = 12

	// last nonceDigits digits of every ID carry the scrambled nonce
	nonceDigits = 3
	nonceSpace  = 1000
)

// IDGenerator produces short numeric session codes that can be typed on a
// phone keypad. The leading digits come from a checksum of the current time
// and the salt mixed with random fill; the trailing digits are a bijective
// scramble of a counter, so any nonceSpace consecutive codes from one
// generator differ.
type IDGenerator struct {
	mu     sync.Mutex
	length int
	nonce  uint64
	now    func() time.Time
	rng    *rand.Rand
}

func NewIDGenerator(length int) *IDGenerator {
	if length < minIDLength {
		length = minIDLength
	}
	if length > maxIDLength {
		length = maxIDLength
	}
	return &IDGenerator{
		length: length,
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}
}

func (g *IDGenerator) Length() int { return g.length }

func (g *IDGenerator) Generate(salt string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	sum := xxhash.Sum64String(strconv.FormatInt(g.now().UnixNano(), 10) + salt)
	fill := g.rng.Uint64()

	span := uint64(1)
	for i := nonceDigits; i < g.length; i++ {
		span *= 10
	}
	high := (sum ^ fill) % span
	// 717 shares no factor with 1000, so this permutes 0..999
	low := (g.nonce * 717) % nonceSpace
	g.nonce = (g.nonce + 1) % nonceSpace

	v := high*nonceSpace + low
	out := make([]byte, g.length)
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = idDigits[v%10]
		v /= 10
	}
	return string(out)
}

// NormalizeID trims what a player may have typed around a session code.
func NormalizeID(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
