// File: utils/cache.go
package utils

import (
	"context"
	"fmt"
	"time"

	"calbook/config"

	"github.com/go-redis/redis/v8"
)

// SessionCacheClient holds conversation sessions when SESSION_STORE=redis.
var SessionCacheClient *redis.Client

// InitSessionCache connects to the session database and verifies it answers.
func InitSessionCache() error {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisSessionDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("connect to redis (sessions) at %s: %w", config.AppConfig.RedisAddr, err)
	}
	SessionCacheClient = client
	return nil
}

// GetSessionCacheClient returns the session client, connecting on first use.
func GetSessionCacheClient() (*redis.Client, error) {
	if SessionCacheClient == nil {
		if err := InitSessionCache(); err != nil {
			return nil, err
		}
	}
	return SessionCacheClient, nil
}

// CloseSessionCache releases the session client if it was opened.
func CloseSessionCache() error {
	if SessionCacheClient == nil {
		return nil
	}
	err := SessionCacheClient.Close()
	SessionCacheClient = nil
	return err
}
