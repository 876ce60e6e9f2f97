package config

import (
	"context"
	"encoding/json"
	"io"

	"github.com/coindata-pipeline/internal/errors"
)

// ObjectGetter is the subset of the object store the remote config loader
// needs. Implemented by storage.ObjectStore.
type ObjectGetter interface {
	Exists(ctx context.Context, key string) (bool, error)
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// RemoteConfig is the configuration object stored in the bucket at
// config/config.json.
type RemoteConfig struct {
	API struct {
		CoinMarketCap struct {
			URI string `json:"uri"`
			Key string `json:"key"`
		} `json:"coinMarketCap"`
	} `json:"api"`
}

// LoadRemote fetches and parses the remote configuration object. A missing
// object yields a ConfigNotFound error; a retrieval failure or invalid JSON
// yields a ConfigParseError with a message naming the failing stage. The
// caller aborts the run in all cases.
func LoadRemote(ctx context.Context, store ObjectGetter, key string) (*RemoteConfig, error) {
	exists, err := store.Exists(ctx, key)
	if err != nil {
		return nil, errors.NewConfigFetchError(key, err)
	}
	if !exists {
		return nil, errors.NewConfigNotFoundError(key)
	}

	obj, err := store.GetObject(ctx, key)
	if err != nil {
		return nil, errors.NewConfigFetchError(key, err)
	}
	defer obj.Close()

	var remote RemoteConfig
	if err := json.NewDecoder(obj).Decode(&remote); err != nil {
		return nil, errors.NewConfigParseError(key, err)
	}

	return &remote, nil
}

// ApplyRemote overlays remote values onto the loaded configuration. Empty
// remote fields leave the environment-provided values in place.
func (c *Config) ApplyRemote(remote *RemoteConfig) {
	if remote == nil {
		return
	}
	if uri := remote.API.CoinMarketCap.URI; uri != "" {
		c.API.URI = uri
	}
	if key := remote.API.CoinMarketCap.Key; key != "" {
		c.API.Key = key
	}
}
