// Package convo keeps short-lived per-user conversation context: recent
// messages, tokens the user mentioned, detected topics and the stated
// risk preference. Contexts expire after an idle period and the store
// can snapshot itself to disk.
package convo

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Topic is a coarse classification of what the user is asking about
type Topic string

const (
	TopicPrice      Topic = "price"
	TopicNews       Topic = "news"
	TopicStrategy   Topic = "strategy"
	TopicTrending   Topic = "trending"
	TopicComparison Topic = "comparison"
	TopicGeneral    Topic = "general"
)

// topicKeywords maps trigger words to topics; first match in table
// order wins
var topicKeywords = []struct {
	topic Topic
	words []string
}{
	{TopicPrice, []string{"price", "worth", "cost", "value", "chart", "ath", "dip"}},
	{TopicNews, []string{"news", "announcement", "update", "happened", "headline"}},
	{TopicStrategy, []string{"strategy", "invest", "portfolio", "stake", "staking", "yield", "hold", "hodl"}},
	{TopicTrending, []string{"trending", "hot", "popular", "pumping", "mover", "movers"}},
	{TopicComparison, []string{"versus", "vs", "compare", "better", "difference"}},
}

// defaultKnownTokens seeds the mention scanner when no token list is
// supplied
var defaultKnownTokens = map[string]string{
	"btc": "bitcoin", "bitcoin": "bitcoin",
	"eth": "ethereum", "ethereum": "ethereum",
	"sol": "solana", "solana": "solana",
	"ada": "cardano", "cardano": "cardano",
	"doge": "dogecoin", "dogecoin": "dogecoin",
	"xrp": "ripple", "ripple": "ripple",
	"dot": "polkadot", "polkadot": "polkadot",
	"link": "chainlink", "chainlink": "chainlink",
	"avax": "avalanche", "avalanche": "avalanche",
	"matic": "polygon", "polygon": "polygon",
}

// Message is one recorded user utterance
type Message struct {
	ID    string    `json:"id" msgpack:"id"`
	Text  string    `json:"text" msgpack:"text"`
	Topic Topic     `json:"topic" msgpack:"topic"`
	At    time.Time `json:"at" msgpack:"at"`
}

// Context is the per-user conversation state. Callers receive copies;
// mutation happens only through the store.
type Context struct {
	UserID          string    `json:"user_id" msgpack:"user_id"`
	Messages        []Message `json:"messages" msgpack:"messages"`
	MentionedTokens []string  `json:"mentioned_tokens" msgpack:"mentioned_tokens"`
	RiskPreference  string    `json:"risk_preference" msgpack:"risk_preference"`
	LastTopic       Topic     `json:"last_topic" msgpack:"last_topic"`
	LastActive      time.Time `json:"last_active" msgpack:"last_active"`
}

// Config holds store limits
type Config struct {
	// MaxMessages bounds the per-user message ring
	MaxMessages int
	// IdleTTL is the inactivity period after which a context expires
	IdleTTL time.Duration
	// SnapshotPath enables disk persistence when non-empty
	SnapshotPath string
	// KnownTokens maps symbol or name to canonical token ID for the
	// mention scanner; nil uses a built-in set
	KnownTokens map[string]string
}

// DefaultConfig returns the standard limits with no snapshotting
func DefaultConfig() Config {
	return Config{
		MaxMessages: 10,
		IdleTTL:     30 * time.Minute,
	}
}

// Store holds all user contexts. A mutex per user serializes one user's
// read-modify-write flows without blocking others; s.mu guards the maps
// and all Context field access, so snapshot reads under RLock are safe
// against concurrent mutation.
type Store struct {
	mu       sync.RWMutex
	contexts map[string]*Context
	locks    map[string]*sync.Mutex

	cfg    Config
	tokens map[string]string
	log    zerolog.Logger
	now    func() time.Time
}

// NewStore creates a store and, when a snapshot path is configured,
// loads the previous snapshot if one exists
func NewStore(cfg Config, logger zerolog.Logger) *Store {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 10
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	tokens := cfg.KnownTokens
	if tokens == nil {
		tokens = defaultKnownTokens
	}

	s := &Store{
		contexts: make(map[string]*Context),
		locks:    make(map[string]*sync.Mutex),
		cfg:      cfg,
		tokens:   tokens,
		log:      logger,
		now:      time.Now,
	}

	if cfg.SnapshotPath != "" {
		if err := s.loadSnapshot(); err != nil {
			logger.Warn().Err(err).Str("path", cfg.SnapshotPath).
				Msg("Failed to load conversation snapshot")
		}
	}
	return s
}

// userLock returns the mutex guarding one user's context, creating it
// on first use
func (s *Store) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// Record appends a message to the user's context, scanning it for token
// mentions and a topic. The oldest message is dropped once the ring is
// full.
func (s *Store) Record(userID, text string) Message {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	topic := detectTopic(text)
	msg := Message{
		ID:    uuid.NewString(),
		Text:  text,
		Topic: topic,
		At:    now,
	}
	tokens := s.scanTokens(text)

	s.mu.Lock()
	ctx := s.getOrCreateLocked(userID, now)

	ctx.Messages = append(ctx.Messages, msg)
	if len(ctx.Messages) > s.cfg.MaxMessages {
		ctx.Messages = ctx.Messages[len(ctx.Messages)-s.cfg.MaxMessages:]
	}

	for _, token := range tokens {
		if !contains(ctx.MentionedTokens, token) {
			ctx.MentionedTokens = append(ctx.MentionedTokens, token)
		}
	}

	ctx.LastTopic = topic
	ctx.LastActive = now
	count := len(ctx.Messages)
	s.mu.Unlock()

	s.log.Debug().
		Str("user", userID).
		Str("topic", string(topic)).
		Int("messages", count).
		Msg("Message recorded")

	s.persist()
	return msg
}

// persist writes the snapshot after a mutation, best effort
func (s *Store) persist() {
	if s.cfg.SnapshotPath == "" {
		return
	}
	if err := s.Snapshot(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to write conversation snapshot")
	}
}

// UpdatePreference records the user's stated risk preference. Unknown
// values are ignored.
func (s *Store) UpdatePreference(userID, preference string) {
	preference = strings.ToLower(strings.TrimSpace(preference))
	switch preference {
	case "low", "medium", "high":
	default:
		return
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	s.mu.Lock()
	ctx := s.getOrCreateLocked(userID, now)
	ctx.RiskPreference = preference
	ctx.LastActive = now
	s.mu.Unlock()

	s.persist()
}

// Context returns a copy of the user's context, or false when none
// exists or it has gone idle past the TTL
func (s *Store) Context(userID string) (Context, bool) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.contexts[userID]
	if !ok {
		return Context{}, false
	}

	if s.now().Sub(ctx.LastActive) > s.cfg.IdleTTL {
		delete(s.contexts, userID)
		s.log.Debug().Str("user", userID).Msg("Context expired")
		return Context{}, false
	}

	return copyContext(ctx), true
}

// Reset discards the user's context
func (s *Store) Reset(userID string) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	delete(s.contexts, userID)
	s.mu.Unlock()
}

// Len reports the number of live contexts, sweeping idle ones first
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for userID, ctx := range s.contexts {
		if now.Sub(ctx.LastActive) > s.cfg.IdleTTL {
			delete(s.contexts, userID)
		}
	}
	return len(s.contexts)
}

// getOrCreateLocked must be called with the user's lock and s.mu held
func (s *Store) getOrCreateLocked(userID string, now time.Time) *Context {
	ctx, ok := s.contexts[userID]
	if ok && now.Sub(ctx.LastActive) > s.cfg.IdleTTL {
		ok = false
	}
	if !ok {
		ctx = &Context{UserID: userID, LastActive: now}
		s.contexts[userID] = ctx
	}
	return ctx
}

// scanTokens returns the canonical IDs of known tokens mentioned in text
func (s *Store) scanTokens(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var found []string
	for _, w := range words {
		if id, ok := s.tokens[w]; ok && !contains(found, id) {
			found = append(found, id)
		}
	}
	return found
}

func detectTopic(text string) Topic {
	lower := strings.ToLower(text)
	for _, row := range topicKeywords {
		for _, w := range row.words {
			if strings.Contains(lower, w) {
				return row.topic
			}
		}
	}
	return TopicGeneral
}

func copyContext(ctx *Context) Context {
	out := *ctx
	out.Messages = append([]Message(nil), ctx.Messages...)
	out.MentionedTokens = append([]string(nil), ctx.MentionedTokens...)
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Snapshot writes all live contexts to the configured path atomically.
// It is a no-op without a snapshot path.
func (s *Store) Snapshot() error {
	if s.cfg.SnapshotPath == "" {
		return nil
	}

	s.mu.RLock()
	contexts := make(map[string]Context, len(s.contexts))
	for userID, ctx := range s.contexts {
		contexts[userID] = copyContext(ctx)
	}
	s.mu.RUnlock()

	data, err := msgpack.Marshal(contexts)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.cfg.SnapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".convo-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.cfg.SnapshotPath)
}

func (s *Store) loadSnapshot() error {
	data, err := os.ReadFile(s.cfg.SnapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var contexts map[string]Context
	if err := msgpack.Unmarshal(data, &contexts); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, ctx := range contexts {
		c := ctx
		s.contexts[userID] = &c
	}

	s.log.Info().Int("contexts", len(contexts)).Msg("Conversation snapshot loaded")
	return nil
}
