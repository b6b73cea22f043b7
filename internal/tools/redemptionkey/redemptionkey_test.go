package redemptionkey

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"
)

func TestRunWritesKeyPairExports(t *testing.T) {
	var out bytes.Buffer
	if err := Run(&out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "export SELO_REDEMPTION_TOKEN_PRIVATE_KEY=") {
		t.Fatalf("first line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "export SELO_REDEMPTION_TOKEN_PUBLIC_KEY=") {
		t.Fatalf("second line = %q", lines[1])
	}

	privateRaw := strings.TrimPrefix(lines[0], "export SELO_REDEMPTION_TOKEN_PRIVATE_KEY=")
	decoded, err := base64.RawStdEncoding.DecodeString(privateRaw)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		t.Fatalf("private key size = %d, want %d", len(decoded), ed25519.PrivateKeySize)
	}
}

func TestRunRequiresOutput(t *testing.T) {
	if err := Run(nil, nil); err == nil {
		t.Fatal("expected error for nil output")
	}
}
