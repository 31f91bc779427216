// Package fairness implements the commit/reveal scheme that lets a player
// verify a game outcome after settlement. The server seed hash is fixed
// before the outcome is drawn; the seed itself is revealed with the record.
package fairness

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"skin-casino/internal/model"
)

const (
	serverSeedBytes = 32
	clientSeedBytes = 16
)

// Seeds is the input of a provably-fair draw.
type Seeds struct {
	ServerSeed string
	ClientSeed string
	Nonce      int64
}

// Commitment is the server's pledge for one game, created before any draw.
type Commitment struct {
	Seeds
	ServerSeedHash string
	FairnessHash   string
}

// Commit generates a fresh server seed for the given client seed and nonce.
// An empty client seed is replaced with a random one.
func Commit(clientSeed string, nonce int64) (*Commitment, error) {
	serverSeed, err := randomHex(serverSeedBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate server seed: %w", err)
	}
	if clientSeed == "" {
		if clientSeed, err = randomHex(clientSeedBytes); err != nil {
			return nil, fmt.Errorf("failed to generate client seed: %w", err)
		}
	}
	return NewCommitment(Seeds{ServerSeed: serverSeed, ClientSeed: clientSeed, Nonce: nonce}), nil
}

// NewCommitment derives the public hashes of known seeds.
func NewCommitment(s Seeds) *Commitment {
	return &Commitment{
		Seeds:          s,
		ServerSeedHash: HashServerSeed(s.ServerSeed),
		FairnessHash:   FairnessHash(s),
	}
}

// Fairness builds the record form of the commitment for a settled game.
func (c *Commitment) Fairness(gameType model.GameType, bet decimal.Decimal) model.Fairness {
	return model.Fairness{
		ServerSeed:     c.ServerSeed,
		ServerSeedHash: c.ServerSeedHash,
		ClientSeed:     c.ClientSeed,
		Nonce:          c.Nonce,
		FairnessHash:   c.FairnessHash,
		GameHash:       GameHash(c.FairnessHash, gameType, bet),
	}
}

// HashServerSeed returns sha256(serverSeed) in hex.
func HashServerSeed(serverSeed string) string {
	return sha256Hex(serverSeed)
}

// FairnessHash returns sha256(serverSeed:clientSeed:nonce) in hex.
func FairnessHash(s Seeds) string {
	return sha256Hex(s.ServerSeed + ":" + s.ClientSeed + ":" + strconv.FormatInt(s.Nonce, 10))
}

// GameHash binds the fairness hash to the game type and stake.
func GameHash(fairnessHash string, gameType model.GameType, bet decimal.Decimal) string {
	return sha256Hex(fairnessHash + ":" + string(gameType) + ":" + bet.StringFixed(2))
}

// Source is a deterministic stream of floats in [0,1) derived from
// HMAC-SHA256(serverSeed, clientSeed:nonce:cursor). Each digest yields four
// 52-bit floats before the cursor advances.
type Source struct {
	mac    []byte
	prefix string
	cursor int64
	buf    []byte
}

// NewSource creates the outcome stream for the given seeds.
func NewSource(s Seeds) *Source {
	return &Source{
		mac:    []byte(s.ServerSeed),
		prefix: s.ClientSeed + ":" + strconv.FormatInt(s.Nonce, 10) + ":",
	}
}

func (s *Source) Float64() float64 {
	if len(s.buf) < 8 {
		h := hmac.New(sha256.New, s.mac)
		h.Write([]byte(s.prefix + strconv.FormatInt(s.cursor, 10)))
		s.buf = h.Sum(nil)
		s.cursor++
	}
	v := binary.BigEndian.Uint64(s.buf[:8]) >> 12
	s.buf = s.buf[8:]
	return float64(v) / (1 << 52)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
