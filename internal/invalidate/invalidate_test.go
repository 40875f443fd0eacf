package invalidate

import "testing"

func TestActions(t *testing.T) {
	tests := []struct {
		path string
		want Action
	}{
		{"src/fn.js", ResetModules | ClearDisplayCache},
		{"src/FN.MJS", ResetModules | ClearDisplayCache},
		{"lib/types.ts", ResetModules | ClearDisplayCache},
		{"src/site.ori", ReloadSite | ClearDisplayCache},
		{"data.yaml", ReloadSite | ClearDisplayCache},
		{"styles/main.css", ClearDisplayCache},
		{"styles/main.scss", ClearDisplayCache},
		{"README.md", None},
		{"Makefile", None},
	}
	for _, tt := range tests {
		if got := Actions(tt.path); got != tt.want {
			t.Errorf("Actions(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestStylesheetOnlyClearsDisplayCache(t *testing.T) {
	a := Actions("main.less")
	if a.Has(ResetModules) || a.Has(ReloadSite) {
		t.Errorf("stylesheet change should not touch server caches: %s", a)
	}
	if !a.Has(ClearDisplayCache) {
		t.Errorf("stylesheet change should clear display cache: %s", a)
	}
}

func TestActionString(t *testing.T) {
	if s := (ResetModules | ClearDisplayCache).String(); s != "reset-modules|clear-display-cache" {
		t.Errorf("String = %q", s)
	}
	if s := None.String(); s != "none" {
		t.Errorf("String = %q", s)
	}
}
