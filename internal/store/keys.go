package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Owner is the feature area that is allowed to write a key.
type Owner string

const (
	OwnerSession   Owner = "session"
	OwnerAssistant Owner = "assistant"
	OwnerPrefs     Owner = "prefs"
)

// Shape describes how a value is encoded.
type Shape string

const (
	ShapeString Shape = "string"
	ShapeJSON   Shape = "json"
	ShapeFlag   Shape = "flag"
)

// Key is a registered entry of the schema.
type Key struct {
	Name  string
	Owner Owner
	Shape Shape
}

var registry = map[string]Key{}

func register(name string, owner Owner, shape Shape) Key {
	if _, dup := registry[name]; dup {
		panic("store: duplicate key " + name)
	}
	k := Key{Name: name, Owner: owner, Shape: shape}
	registry[name] = k
	return k
}

// Schema of every persisted entry.
var (
	TokenKey          = register("jwt_token", OwnerSession, ShapeString)
	UserInfoKey       = register("user_info", OwnerSession, ShapeJSON)
	RememberedUserKey = register("rememberedUser", OwnerSession, ShapeJSON)
	PositionKey       = register("aiAssistantPosition", OwnerAssistant, ShapeJSON)
	ChatHistoryKey    = register("aiAssistantChatHistory", OwnerAssistant, ShapeJSON)
	HideWelcomeKey    = register("aiAssistantHideWelcome", OwnerAssistant, ShapeFlag)
	ThemeKey          = register("theme", OwnerPrefs, ShapeString)
)

// SessionKeys are the entries cleared together whenever the session ends.
var SessionKeys = []string{TokenKey.Name, UserInfoKey.Name}

// Lookup returns the registered key with the given name.
func Lookup(name string) (Key, bool) {
	k, ok := registry[name]
	return k, ok
}

// Keys returns all registered keys sorted by name.
func Keys() []Key {
	keys := make([]Key, 0, len(registry))
	for _, k := range registry {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	return keys
}

// JSONEntry is a typed accessor for a JSON-shaped key.
type JSONEntry[T any] struct {
	Key Key
}

// JSON binds a JSON-shaped key to a Go type.
func JSON[T any](k Key) JSONEntry[T] {
	if k.Shape != ShapeJSON {
		panic("store: key " + k.Name + " is not JSON shaped")
	}
	return JSONEntry[T]{Key: k}
}

// Load decodes the entry. A missing entry returns ok=false and no error.
func (e JSONEntry[T]) Load(ctx context.Context, s Store) (T, bool, error) {
	var v T
	raw, ok, err := s.Get(ctx, e.Key.Name)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", e.Key.Name, err)
	}
	return v, true, nil
}

// Save encodes and writes the entry.
func (e JSONEntry[T]) Save(ctx context.Context, s Store, v T) error {
	raw, err := e.Encode(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, e.Key.Name, raw)
}

// Encode returns the stored form of v, for use with SetMany.
func (e JSONEntry[T]) Encode(v T) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", e.Key.Name, err)
	}
	return string(b), nil
}

// Delete removes the entry.
func (e JSONEntry[T]) Delete(ctx context.Context, s Store) error {
	return s.Remove(ctx, e.Key.Name)
}

const flagTrue = "true"

// FlagEntry is a boolean entry stored as "true" or absent.
type FlagEntry struct {
	Key Key
}

// Flag binds a flag-shaped key.
func Flag(k Key) FlagEntry {
	if k.Shape != ShapeFlag {
		panic("store: key " + k.Name + " is not flag shaped")
	}
	return FlagEntry{Key: k}
}

// IsSet reports whether the flag is "true".
func (f FlagEntry) IsSet(ctx context.Context, s Store) (bool, error) {
	raw, ok, err := s.Get(ctx, f.Key.Name)
	if err != nil {
		return false, err
	}
	return ok && raw == flagTrue, nil
}

// Set stores "true".
func (f FlagEntry) Set(ctx context.Context, s Store) error {
	return s.Set(ctx, f.Key.Name, flagTrue)
}
