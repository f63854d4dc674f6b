package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.DSN == "" {
		t.Error("expected a default store DSN")
	}
	sum := cfg.Similarity.Wv + cfg.Similarity.We + cfg.Similarity.Wt
	if sum < 0.99 || sum > 1.01 {
		t.Errorf("default similarity weights sum to %v, want ~1.0", sum)
	}
	if cfg.VectorStore.Dimensions != 768 {
		t.Errorf("VectorStore.Dimensions = %d, want 768", cfg.VectorStore.Dimensions)
	}
}

func TestLoadCachesGlobalConfig(t *testing.T) {
	Reset()
	defer Reset()

	first, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first != second {
		t.Error("expected Load to return the cached global config on a second call")
	}
}

func TestGetPanicsNeverTriggeredByValidDefaults(t *testing.T) {
	Reset()
	defer Reset()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Get panicked unexpectedly: %v", r)
		}
	}()
	if Get() == nil {
		t.Error("expected Get to return a non-nil config")
	}
}
