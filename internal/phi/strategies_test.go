package phi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
)

func TestMaskWithPrefix(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		first := maskWithPrefix("John Smith", "PERSON", "salt", 8)
		second := maskWithPrefix("John Smith", "PERSON", "salt", 8)
		if first != second {
			t.Errorf("expected identical tokens, got %q and %q", first, second)
		}
	})

	t.Run("salt changes token", func(t *testing.T) {
		a := maskWithPrefix("John Smith", "PERSON", "salt-a", 8)
		b := maskWithPrefix("John Smith", "PERSON", "salt-b", 8)
		if a == b {
			t.Error("different salts produced the same token")
		}
	})

	t.Run("prefix and length", func(t *testing.T) {
		token := maskWithPrefix("value", "MRN", "salt", 10)
		if !strings.HasPrefix(token, "MRN_") {
			t.Errorf("token %q missing prefix", token)
		}
		if got := len(token) - len("MRN_"); got != 10 {
			t.Errorf("digest length = %d, want 10", got)
		}
	})

	t.Run("never contains original", func(t *testing.T) {
		token := maskWithPrefix("SensitiveName", "PERSON", "salt", 8)
		if strings.Contains(token, "SensitiveName") {
			t.Errorf("token %q leaks the original value", token)
		}
	})
}

func TestMaskPhone(t *testing.T) {
	t.Run("preserves formatting", func(t *testing.T) {
		masked := maskPhone("(555) 123-4567", "salt")
		if len(masked) != len("(555) 123-4567") {
			t.Fatalf("length changed: %q", masked)
		}
		for i, r := range "(555) 123-4567" {
			m := rune(masked[i])
			if r >= '0' && r <= '9' {
				if m < '0' || m > '9' {
					t.Errorf("position %d: digit became %q", i, m)
				}
			} else if m != r {
				t.Errorf("position %d: separator %q became %q", i, r, m)
			}
		}
	})

	t.Run("changes digits", func(t *testing.T) {
		if maskPhone("555-123-4567", "salt") == "555-123-4567" {
			t.Error("masked phone equals original")
		}
	})

	t.Run("no digits falls back", func(t *testing.T) {
		masked := maskPhone("ext. unknown", "salt")
		if !strings.HasPrefix(masked, "PHONE_") {
			t.Errorf("expected PHONE_ fallback, got %q", masked)
		}
	})
}

func TestMaskEmail(t *testing.T) {
	masked := maskEmail("jane.doe@hospital.org", "salt")

	if strings.Contains(masked, "jane") || strings.Contains(masked, "hospital") {
		t.Errorf("masked email %q leaks original parts", masked)
	}
	if !strings.HasSuffix(masked, ".example") {
		t.Errorf("masked email %q missing .example suffix", masked)
	}
	if !strings.Contains(masked, "@") {
		t.Errorf("masked email %q is not an address", masked)
	}
	if masked != maskEmail("jane.doe@hospital.org", "salt") {
		t.Error("masking is not deterministic")
	}
}

func TestMaskDate(t *testing.T) {
	masked := maskDate("1985-03-14", "salt")

	var year, day int
	if n, err := fmt.Sscanf(masked, "%d-DAY-%d", &year, &day); err != nil || n != 2 {
		t.Fatalf("unexpected date token %q", masked)
	}
	if year < 2000 || year >= 2030 {
		t.Errorf("year %d outside [2000, 2030)", year)
	}
	if day < 0 || day >= 365 {
		t.Errorf("day %d outside [0, 365)", day)
	}
}

func TestMaskIP(t *testing.T) {
	masked := maskIP("192.168.1.100", "salt")
	parts := strings.Split(masked, ".")
	if len(parts) != 4 {
		t.Fatalf("expected dotted quad, got %q", masked)
	}
	for _, part := range parts {
		octet, err := strconv.Atoi(part)
		if err != nil {
			t.Fatalf("non-numeric octet %q", part)
		}
		if octet < 1 || octet > 254 {
			t.Errorf("octet %d outside [1, 254]", octet)
		}
	}
}

func TestMaskNumeric(t *testing.T) {
	masked := maskNumeric("123-45-6789", "SSN", "salt")
	if !strings.HasPrefix(masked, "SSN-") {
		t.Fatalf("expected SSN- prefix, got %q", masked)
	}
	digits := masked[len("SSN-"):]
	if len(digits) != 9 {
		t.Errorf("digit count = %d, want 9", len(digits))
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			t.Errorf("non-digit %q in masked value", r)
		}
	}
}

func TestRegistrySynthesizeFallback(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})

	t.Run("nil generator degrades to deterministic", func(t *testing.T) {
		rc := NewReplacementContext("salt", nil)
		got := registry.Synthesize(context.Background(), "PERSON", "John Smith", rc)
		want := registry.Replace("PERSON", "John Smith", NewReplacementContext("salt", nil))
		if got != want {
			t.Errorf("got %q, want deterministic %q", got, want)
		}
	})

	t.Run("failing generator degrades", func(t *testing.T) {
		rc := NewReplacementContext("salt", failingGenerator{})
		got := registry.Synthesize(context.Background(), "PERSON", "John Smith", rc)
		if !strings.HasPrefix(got, "PERSON_") {
			t.Errorf("expected deterministic fallback, got %q", got)
		}
	})

	t.Run("generator output wins and is cached", func(t *testing.T) {
		rc := NewReplacementContext("salt", staticGenerator{text: "Alex Rivera"})
		first := registry.Synthesize(context.Background(), "PERSON", "John Smith", rc)
		if first != "Alex Rivera" {
			t.Fatalf("got %q, want generator output", first)
		}
		second := registry.Replace("PERSON", "John Smith", rc)
		if second != first {
			t.Errorf("cache miss: %q vs %q", second, first)
		}
	})
}

func TestRegistryFallbackPrefix(t *testing.T) {
	registry := NewRegistry(RegistryConfig{FallbackPrefix: "anon", FallbackLength: 12})
	rc := NewReplacementContext("salt", nil)

	token := registry.Replace("MEDICAL_LICENSE", "A123456", rc)
	if !strings.HasPrefix(token, "anon_") {
		t.Errorf("expected configured fallback prefix, got %q", token)
	}
	if got := len(token) - len("anon_"); got != 12 {
		t.Errorf("digest length = %d, want 12", got)
	}
}

type failingGenerator struct{}

func (failingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", context.DeadlineExceeded
}

type staticGenerator struct{ text string }

func (g staticGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.text, nil
}
