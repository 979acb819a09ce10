package postgres

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		URL:          "postgres://u:p@localhost:5432/db",
		PingTimeout:  time.Second,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	invalid := valid
	invalid.URL = ""
	if err := invalid.Validate(); err == nil {
		t.Fatalf("Validate() expected error for empty URL")
	}

	invalid = valid
	invalid.MaxIdleConns = 20
	if err := invalid.Validate(); err == nil {
		t.Fatalf("Validate() expected error for idle > open")
	}
}
