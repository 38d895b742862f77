package skills

import "testing"

func TestExpandTemplateSubstitutesKnownVars(t *testing.T) {
	out := ExpandTemplate("Researching {{topic}} for {{user}}.", map[string]string{
		"topic": "battery chemistry",
		"user":  "alex",
	})
	want := "Researching battery chemistry for alex."
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestExpandTemplateLeavesUnknownVarsLiteral(t *testing.T) {
	out := ExpandTemplate("Hello {{name}}, run {{exec.Command}}.", map[string]string{"name": "alex"})
	if out != "Hello alex, run {{exec.Command}}." {
		t.Fatalf("got %q", out)
	}
}
