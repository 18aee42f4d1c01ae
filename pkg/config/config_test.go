package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
accounts:
  - id: acc-1
    name: Test Account
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	policy := &cfg.Accounts[0].Policy
	if policy.RiskTolerance != RiskConservative {
		t.Errorf("risk tolerance = %q, want conservative default", policy.RiskTolerance)
	}
	if policy.CooldownDays != 7 {
		t.Errorf("cooldown = %d, want 7", policy.CooldownDays)
	}
	if policy.Cap() != 5 {
		t.Errorf("cap = %v, want 5 (conservative)", policy.Cap())
	}
	if policy.Step() != 0.05 {
		t.Errorf("step = %v, want 0.05", policy.Step())
	}
	if policy.AutomationMode != ModeSuggest {
		t.Errorf("automation mode = %q, want suggest default", policy.AutomationMode)
	}
	if len(policy.LeverPriority) != 3 || policy.LeverPriority[0] != "status" {
		t.Errorf("lever priority = %v, want status first", policy.LeverPriority)
	}

	if cfg.Ledger.Backend != "sqlite" {
		t.Errorf("ledger backend = %q, want sqlite default", cfg.Ledger.Backend)
	}
	if cfg.Executor.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Executor.MaxAttempts)
	}
	if cfg.Rollback.KPI != "cpa" {
		t.Errorf("rollback kpi = %q, want cpa default", cfg.Rollback.KPI)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	bad := `
accounts:
  - id: acc-1
    policy:
      risk_tolerance: reckless
      confidence_threshold: 2.5
      lever_priority: [budget, teleport]
  - id: acc-1
`
	_, err := LoadConfig(writeConfig(t, bad))
	if err == nil {
		t.Fatal("invalid configuration accepted")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	// Unknown tolerance, out-of-range threshold, unknown lever, duplicate ID.
	if len(verr.Errors) < 4 {
		t.Errorf("errors = %d, want at least 4:\n%v", len(verr.Errors), verr)
	}
}

func TestLoadConfigRequiresAccounts(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "accounts: []\n"))
	if err == nil {
		t.Error("empty account list accepted")
	}
}

func TestCapPerTolerance(t *testing.T) {
	policy := PolicyConfig{ChangeCaps: DefaultChangeCaps}

	cases := []struct {
		tolerance RiskTolerance
		want      float64
	}{
		{RiskConservative, 5},
		{RiskBalanced, 10},
		{RiskAggressive, 15},
	}
	for _, tc := range cases {
		policy.RiskTolerance = tc.tolerance
		if got := policy.Cap(); got != tc.want {
			t.Errorf("Cap(%s) = %v, want %v", tc.tolerance, got, tc.want)
		}
	}
}

func TestAutomationModeGating(t *testing.T) {
	if ModeInsights.AllowsUnattended() || ModeSuggest.AllowsUnattended() {
		t.Error("insights/suggest must not allow unattended execution")
	}
	if !ModeAutoLowRisk.AllowsUnattended() || !ModeAutoExpanded.AllowsUnattended() {
		t.Error("auto modes must allow unattended execution")
	}
}

func TestIsProtected(t *testing.T) {
	policy := PolicyConfig{ProtectedEntities: []string{"cmp-vip"}}
	if !policy.IsProtected("cmp-vip") {
		t.Error("listed entity not protected")
	}
	if policy.IsProtected("cmp-other") {
		t.Error("unlisted entity protected")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ADPILOT_LEDGER_BACKEND", "memory")
	t.Setenv("ADPILOT_PLATFORM_TIMEOUT", "10s")
	t.Setenv("ADPILOT_LOG_LEVEL", "debug")

	cfg, err := LoadConfigWithEnvOverrides(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides: %v", err)
	}
	if cfg.Ledger.Backend != "memory" {
		t.Errorf("ledger backend = %q, want env override", cfg.Ledger.Backend)
	}
	if cfg.Platform.Timeout != 10*time.Second {
		t.Errorf("platform timeout = %v, want 10s", cfg.Platform.Timeout)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Telemetry.Logging.Level)
	}
}

func TestAccountLookup(t *testing.T) {
	cfg := &Config{Accounts: []AccountConfig{{ID: "acc-1"}, {ID: "acc-2"}}}
	if acct := cfg.Account("acc-2"); acct == nil || acct.ID != "acc-2" {
		t.Errorf("Account(acc-2) = %v", acct)
	}
	if acct := cfg.Account("acc-9"); acct != nil {
		t.Errorf("Account(acc-9) = %v, want nil", acct)
	}
}
