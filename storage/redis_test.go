package storage

import "testing"

func TestRedisOptionsURL(t *testing.T) {
	opts := RedisOptions("redis://:secret@cache.local:6380/2")
	if opts.Addr != "cache.local:6380" {
		t.Fatalf("unexpected addr: %s", opts.Addr)
	}
	if opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestRedisOptionsConnectionString(t *testing.T) {
	opts := RedisOptions("cache.local:6380, password=secret, ssl=True")
	if opts.Addr != "cache.local:6380" {
		t.Fatalf("unexpected addr: %s", opts.Addr)
	}
	if opts.Password != "secret" {
		t.Fatalf("unexpected password: %q", opts.Password)
	}
	if opts.TLSConfig == nil {
		t.Fatal("expected TLS to be enabled")
	}
}

func TestRedisOptionsPlainAddress(t *testing.T) {
	opts := RedisOptions("localhost:6379")
	if opts.Addr != "localhost:6379" || opts.TLSConfig != nil {
		t.Fatalf("unexpected options: %+v", opts)
	}
}
