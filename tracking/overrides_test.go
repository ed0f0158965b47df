package tracking

import "testing"

func TestParseOverrides(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want map[string]string
	}{
		{"nil", nil, nil},
		{"empty", []string{}, nil},
		{"simple", []string{"lr=0.1"}, map[string]string{"lr": "0.1"}},
		{"dotted", []string{"trainer.optimizer.lr=0.01"}, map[string]string{"trainer.optimizer.lr": "0.01"}},
		{"value with equals", []string{"expr=a=b"}, map[string]string{"expr": "a=b"}},
		{"quoted value", []string{`name="my run"`}, map[string]string{"name": "my run"}},
		{"sanitized keys", []string{"model@variant=large", "data/split=train", "+extra=1", "~removed=x"},
			map[string]string{"modelATvariant": "large", "data_split": "train", "extra": "1", "-removed": "x"}},
		{"numeric literal canonicalized", []string{"lr=0.50"}, map[string]string{"lr": "0.5"}},
		{"bool literal canonicalized", []string{"flag=True", "dry=false"},
			map[string]string{"flag": "true", "dry": "false"}},
		{"quoted literal stays textual", []string{"tag='0.50'"}, map[string]string{"tag": "0.50"}},
		{"malformed skipped", []string{"no-equals", "=novalue", "ok=1"}, map[string]string{"ok": "1"}},
		{"all malformed", []string{"junk"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOverrides(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseOverrides(%v) = %v, want %v", tt.in, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("param %q = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
