package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

const vapidKey = "notice_engine:vapid"

// VAPIDKeys is a generated signing pair shared by every process through Redis.
type VAPIDKeys struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// SharedVAPIDKeys returns the pair stored in Redis, creating it with generate on first use.
// When two processes race, the first SETNX wins and both read back the winner.
func SharedVAPIDKeys(ctx context.Context, client *goredis.Client, generate func() (VAPIDKeys, error)) (VAPIDKeys, error) {
	if client == nil {
		return VAPIDKeys{}, fmt.Errorf("redis client is required")
	}

	keys, found, err := loadVAPIDKeys(ctx, client)
	if err != nil || found {
		return keys, err
	}

	generated, err := generate()
	if err != nil {
		return VAPIDKeys{}, err
	}
	raw, err := json.Marshal(generated)
	if err != nil {
		return VAPIDKeys{}, fmt.Errorf("failed to encode vapid keys: %w", err)
	}
	if err := client.SetNX(ctx, vapidKey, raw, 0).Err(); err != nil {
		return VAPIDKeys{}, fmt.Errorf("failed to store vapid keys: %w", err)
	}

	keys, found, err = loadVAPIDKeys(ctx, client)
	if err != nil {
		return VAPIDKeys{}, err
	}
	if !found {
		return VAPIDKeys{}, fmt.Errorf("vapid keys vanished after store")
	}
	return keys, nil
}

func loadVAPIDKeys(ctx context.Context, client *goredis.Client) (VAPIDKeys, bool, error) {
	raw, err := client.Get(ctx, vapidKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return VAPIDKeys{}, false, nil
	}
	if err != nil {
		return VAPIDKeys{}, false, fmt.Errorf("failed to read vapid keys: %w", err)
	}

	var keys VAPIDKeys
	if err := json.Unmarshal(raw, &keys); err != nil {
		return VAPIDKeys{}, false, fmt.Errorf("failed to decode vapid keys: %w", err)
	}
	if keys.PublicKey == "" || keys.PrivateKey == "" {
		return VAPIDKeys{}, false, fmt.Errorf("stored vapid keys are incomplete")
	}
	return keys, true, nil
}
