package fingerprint

import "testing"

func fullSignals() Signals {
	tz := -330
	touch := true
	cookies := true
	return Signals{
		UserAgent:           "Mozilla/5.0 (Linux; Android 13) Chrome/120",
		Platform:            "Linux armv8l",
		Language:            "en-IN",
		Vendor:              "Google Inc.",
		TimezoneOffsetMin:   &tz,
		HardwareConcurrency: 8,
		ScreenWidth:         1080,
		ScreenHeight:        2400,
		ColorDepth:          24,
		TouchSupport:        &touch,
		CookiesEnabled:      &cookies,
		CanvasHash:          "c4nv4s",
		WebGLVendor:         "ARM",
		WebGLRenderer:       "Mali-G78",
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a := Compute(fullSignals())
	b := Compute(fullSignals())
	if a != b {
		t.Errorf("identical signals produced different fingerprints: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(a))
	}
}

func TestCompute_SignalChangesIdentifier(t *testing.T) {
	base := Compute(fullSignals())

	s := fullSignals()
	s.CanvasHash = "different"
	if Compute(s) == base {
		t.Error("canvas change should change the fingerprint")
	}

	s = fullSignals()
	s.ScreenWidth = 1440
	if Compute(s) == base {
		t.Error("screen change should change the fingerprint")
	}
}

func TestCompute_MissingSignalsUsePlaceholder(t *testing.T) {
	a := Compute(Signals{})
	b := Compute(Signals{})
	if a != b {
		t.Error("empty signal sets must still fingerprint deterministically")
	}

	// An explicit zero timezone offset is a real signal, distinct from absent.
	tz := 0
	c := Compute(Signals{TimezoneOffsetMin: &tz})
	if c == a {
		t.Error("explicit zero offset should differ from absent offset")
	}
}
