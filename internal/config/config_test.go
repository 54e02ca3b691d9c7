package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func trackFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("track", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.String("tx", "", "")
	flags.StringSlice("wait-field", nil, "")
	flags.Int("max-retries", 10, "")
	return flags
}

func TestLoadTrackFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "scope.yaml")
	content := "rpc: ws://file:9944\nmax-retries: 3\ndomain-pallet: Gear,Vara\nwait-event: UserMessageSent\n"
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	flags := trackFlags()
	if err := flags.Parse([]string{"--rpc", "ws://flag:9944", "--wait-field", "value=7,destination=0x01"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadTrack(cfgFile, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "ws://flag:9944" {
		t.Fatalf("flag should win, got %s", cfg.RPCURL)
	}
	if cfg.MaxRetries != 3 {
		t.Fatalf("file value should apply to unchanged flag, got %d", cfg.MaxRetries)
	}
	if !reflect.DeepEqual(cfg.DomainPallets, []string{"Gear", "Vara"}) {
		t.Fatalf("unexpected domain pallets %v", cfg.DomainPallets)
	}
	if !reflect.DeepEqual(cfg.WaitFields, []string{"value=7", "destination=0x01"}) {
		t.Fatalf("unexpected wait fields %v", cfg.WaitFields)
	}
	if cfg.WaitEvent != "UserMessageSent" {
		t.Fatalf("unexpected wait event %q", cfg.WaitEvent)
	}
	if cfg.RetryBackoff != 500*time.Millisecond || cfg.Out != "./data/outcomes.jsonl" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadWaitFromEnv(t *testing.T) {
	t.Setenv("SCOPE_RPC", "ws://env:9944")
	t.Setenv("SCOPE_EVENT", "Gear::MessageQueued")
	t.Setenv("SCOPE_LOG_LEVEL", "debug")

	cfg, err := LoadWait("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "ws://env:9944" || cfg.Event != "Gear::MessageQueued" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.DomainPallets, []string{"Gear"}) {
		t.Fatalf("unexpected default domain pallets %v", cfg.DomainPallets)
	}
}

func TestLoadErrorsDefaults(t *testing.T) {
	cfg, err := LoadErrors("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pallet != -1 || cfg.Error != -1 {
		t.Fatalf("expected unset indices, got %d/%d", cfg.Pallet, cfg.Error)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := LoadDecode(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestSplitAndClean(t *testing.T) {
	got := splitAndClean(" a, ,b ,")
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected result %v", got)
	}
}
