package validate

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		constraints StringConstraints
		wantErr     error
		wantOutput  string
	}{
		{
			name:  "valid string within length constraints",
			input: "Hello World",
			constraints: StringConstraints{
				MinLength: 5,
				MaxLength: 20,
				TrimSpace: true,
			},
			wantErr:    nil,
			wantOutput: "Hello World",
		},
		{
			name:  "string too short",
			input: "Hi",
			constraints: StringConstraints{
				MinLength: 5,
				MaxLength: 20,
			},
			wantErr: ErrStringTooShort,
		},
		{
			name:  "string too long",
			input: strings.Repeat("a", 101),
			constraints: StringConstraints{
				MinLength: 1,
				MaxLength: 100,
			},
			wantErr: ErrStringTooLong,
		},
		{
			name:  "empty string not allowed",
			input: "",
			constraints: StringConstraints{
				AllowEmpty: false,
			},
			wantErr: ErrEmpty,
		},
		{
			name:  "empty string allowed",
			input: "",
			constraints: StringConstraints{
				AllowEmpty: true,
			},
			wantErr:    nil,
			wantOutput: "",
		},
		{
			name:  "whitespace trimmed",
			input: "  Hello  ",
			constraints: StringConstraints{
				TrimSpace: true,
			},
			wantErr:    nil,
			wantOutput: "Hello",
		},
		{
			name:  "whitespace only treated as empty",
			input: "   ",
			constraints: StringConstraints{
				TrimSpace:  true,
				AllowEmpty: false,
			},
			wantErr: ErrEmpty,
		},
		{
			name:  "multibyte characters counted as runes",
			input: strings.Repeat("é", 10),
			constraints: StringConstraints{
				MinLength: 1,
				MaxLength: 10,
			},
			wantErr:    nil,
			wantOutput: strings.Repeat("é", 10),
		},
		{
			name:  "pattern validation success",
			input: "valid-name_123",
			constraints: StringConstraints{
				AllowedPattern: mustCompile(`^[a-zA-Z0-9_\-]+$`),
			},
			wantErr:    nil,
			wantOutput: "valid-name_123",
		},
		{
			name:  "pattern validation failure",
			input: "invalid name!",
			constraints: StringConstraints{
				AllowedPattern: mustCompile(`^[a-zA-Z0-9_\-]+$`),
			},
			wantErr: ErrInvalidCharacters,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if err == nil {
					t.Errorf("String() error = nil, wantErr %v", tt.wantErr)
					return
				}
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("String() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("String() unexpected error = %v", err)
				return
			}
			if got != tt.wantOutput {
				t.Errorf("String() = %q, want %q", got, tt.wantOutput)
			}
		})
	}
}

func TestSanitizeHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text unchanged",
			input: "Hello World",
			want:  "Hello World",
		},
		{
			name:  "script tag escaped",
			input: "<script>alert('xss')</script>",
			want:  "&lt;script&gt;alert(&#39;xss&#39;)&lt;/script&gt;",
		},
		{
			name:  "HTML entities escaped",
			input: `<div onclick="evil()">Click me</div>`,
			want:  "&lt;div onclick=&#34;evil()&#34;&gt;Click me&lt;/div&gt;",
		},
		{
			name:  "ampersand escaped",
			input: "Tom & Jerry",
			want:  "Tom &amp; Jerry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeHTML(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeHTML() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClaimText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "valid claim text",
			input:   "Regular exercise improves sleep quality",
			wantErr: nil,
		},
		{
			name:    "claim text at max length",
			input:   strings.Repeat("a", MaxClaimTextLength),
			wantErr: nil,
		},
		{
			name:    "claim text too long",
			input:   strings.Repeat("a", MaxClaimTextLength+1),
			wantErr: ErrStringTooLong,
		},
		{
			name:    "empty claim text",
			input:   "",
			wantErr: ErrEmpty,
		},
		{
			name:    "whitespace only claim text",
			input:   "  \t ",
			wantErr: ErrEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ClaimText(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ClaimText() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAnnotationText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "valid annotation text",
			input:   "A 2019 meta-analysis supports this",
			wantErr: nil,
		},
		{
			name:    "annotation text too long",
			input:   strings.Repeat("b", MaxClaimTextLength+1),
			wantErr: ErrStringTooLong,
		},
		{
			name:    "empty annotation text",
			input:   "",
			wantErr: ErrEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AnnotationText(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AnnotationText() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActorID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "plain user ID",
			input:   "user-123",
			wantErr: false,
		},
		{
			name:    "handle style ID",
			input:   "@claimant",
			wantErr: false,
		},
		{
			name:    "UUID style ID",
			input:   "550e8400-e29b-41d4-a716-446655440000",
			wantErr: false,
		},
		{
			name:    "empty ID",
			input:   "",
			wantErr: true,
		},
		{
			name:    "ID with spaces",
			input:   "user 123",
			wantErr: true,
		},
		{
			name:    "ID too long",
			input:   strings.Repeat("x", 65),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ActorID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ActorID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid domain tag",
			input:   "health",
			wantErr: false,
		},
		{
			name:    "dashed domain tag",
			input:   "public-policy",
			wantErr: false,
		},
		{
			name:    "empty domain allowed",
			input:   "",
			wantErr: false,
		},
		{
			name:    "uppercase rejected",
			input:   "Health",
			wantErr: true,
		},
		{
			name:    "domain too long",
			input:   strings.Repeat("d", 51),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Domain(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Domain(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

// Helper function for tests
func mustCompile(pattern string) *regexp.Regexp {
	return regexp.MustCompile(pattern)
}
