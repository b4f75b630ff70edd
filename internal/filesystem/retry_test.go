package filesystem

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE error", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT error", err: syscall.ENOENT, want: false},
		{name: "generic error", err: os.ErrNotExist, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"media":   "/media",
		"staging": "/data/recycle",
		"cache":   "/data",
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "media root", path: "/media", want: "media"},
		{name: "media file", path: "/media/photos/image.jpg", want: "media"},
		{name: "staging wins over its parent", path: "/data/recycle/media/a.jpg", want: "staging"},
		{name: "cache", path: "/data/thumbs/abc.jpg", want: "cache"},
		{name: "sibling with shared prefix", path: "/mediafiles/a.jpg", want: "unknown"},
		{name: "unknown", path: "/tmp/x", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/media/test.jpg"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want %q", got, "unknown")
	}
}

func TestRetryConfig_ResolveVolume_UsesConfigResolver(t *testing.T) {
	config := DefaultRetryConfig()
	config.VolumeResolver = NewVolumeResolver(map[string]string{"media": "/media"})

	if got := config.resolveVolume("/media/a.jpg"); got != "media" {
		t.Errorf("resolveVolume = %q, want media", got)
	}
}

// recordingObserver counts retry callbacks.
type recordingObserver struct {
	nopObserver
	attempts, successes, failures, stale int
}

func (o *recordingObserver) ObserveRetryAttempt(string, string) { o.attempts++ }
func (o *recordingObserver) ObserveRetrySuccess(string, string) { o.successes++ }
func (o *recordingObserver) ObserveRetryFailure(string, string) { o.failures++ }
func (o *recordingObserver) ObserveStaleError(string, string)   { o.stale++ }

// Not parallel: swaps the package observer.
func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	config := RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	calls := 0
	got, err := withRetry("stat", "/media/a.jpg", config, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, &os.PathError{Op: "stat", Path: "/media/a.jpg", Err: syscall.ESTALE}
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("withRetry = (%d, %v), want (42, nil)", got, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.stale != 2 || obs.attempts != 2 || obs.successes != 1 || obs.failures != 0 {
		t.Errorf("observer = %+v", *obs)
	}
}

// Not parallel: swaps the package observer.
func TestWithRetry_GivesUp(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	config := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

	calls := 0
	_, err := withRetry("open", "/media/a.jpg", config, func() (int, error) {
		calls++
		return 0, syscall.ESTALE
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("err = %v, want ESTALE", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want MaxRetries+1 = 3", calls)
	}
	if obs.failures != 1 {
		t.Errorf("failures = %d, want 1", obs.failures)
	}
}
