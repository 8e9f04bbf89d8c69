package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisRejectsEmptyURL(t *testing.T) {
	_, err := NewRedis(RedisConfig{})
	assert.Error(t, err)
}

func TestNewRedisRejectsInvalidURL(t *testing.T) {
	_, err := NewRedis(RedisConfig{URL: "not-a-redis-url://"})
	assert.Error(t, err)
}

func TestRedisKeyIncludesPrefix(t *testing.T) {
	r := &Redis{prefix: "tokencore:cache"}
	assert.Equal(t, "tokencore:cache:handle-1", r.key("handle-1"))
}

func TestRedisKeyWithDefaultPrefix(t *testing.T) {
	// NewRedis substitutes "tokencore:cache" for an empty KeyPrefix only
	// after its Ping succeeds, so that path needs a live server; this
	// checks key formatting with the default prefix value directly.
	r := &Redis{}
	if r.prefix == "" {
		r.prefix = "tokencore:cache"
	}
	assert.Equal(t, "tokencore:cache:h", r.key("h"))
}
