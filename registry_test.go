package loader

import "testing"

func TestRegistryCanonical(t *testing.T) {
	reg := NewRegistry()

	tests := map[string]string{
		"Bad USB":     "Bad KB",
		"Bad USB Pro": "Bad KB",
		"Bad KB":      "Bad KB",
		"NFC":         "NFC",
		"":            "",
	}
	for in, want := range tests {
		if got := reg.Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegistryFindBuiltinOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Internal = []Descriptor{{Kind: KindInternal, Name: "Shared", AppID: "internal_shared"}}
	reg.System = []Descriptor{
		{Kind: KindSystem, Name: "Shared", AppID: "system_shared"},
		{Kind: KindSystem, Name: "NFC", AppID: "nfc"},
	}
	reg.Debug = []Descriptor{{Kind: KindDebug, Name: "Blink", AppID: "blink"}}

	d, ok := reg.FindBuiltin("Shared")
	if !ok || d.Kind != KindInternal {
		t.Fatalf("FindBuiltin(Shared) = %+v, %v; want internal entry", d, ok)
	}
	if d, ok := reg.FindBuiltin("nfc"); !ok || d.Name != "NFC" {
		t.Errorf("FindBuiltin by app id failed: %+v, %v", d, ok)
	}
	if d, ok := reg.FindBuiltin("Blink"); !ok || d.Kind != KindDebug {
		t.Errorf("FindBuiltin(Blink) = %+v, %v", d, ok)
	}
	if _, ok := reg.FindBuiltin("Snake"); ok {
		t.Error("FindBuiltin(Snake) should fail")
	}
}

func TestRegistryFindExternal(t *testing.T) {
	reg := NewRegistry()
	reg.External = []Descriptor{{Kind: KindExternalAlias, Name: "Snake", Path: "/ext/apps/Games/snake.fap"}}
	reg.Settings = []Descriptor{{Kind: KindExternalAlias, Name: "Bluetooth", Path: "/ext/apps/Settings/bt.fap"}}

	if d, ok := reg.FindExternal("Snake"); !ok || d.Path != "/ext/apps/Games/snake.fap" {
		t.Errorf("FindExternal(Snake) = %+v, %v", d, ok)
	}
	if d, ok := reg.FindExternal("Bluetooth"); !ok || d.Path != "/ext/apps/Settings/bt.fap" {
		t.Errorf("FindExternal(Bluetooth) = %+v, %v", d, ok)
	}
	if _, ok := reg.FindExternal("snake"); ok {
		t.Error("alias lookup must be exact")
	}
}

func TestRegistryMenuNames(t *testing.T) {
	reg := NewRegistry()
	reg.System = []Descriptor{{Name: "Sub-GHz"}, {Name: "NFC"}}
	reg.External = []Descriptor{{Name: "Snake"}, {Name: ApplicationsName}}

	got := reg.menuNames()
	want := []string{"Sub-GHz", "NFC", "Snake"}
	if len(got) != len(want) {
		t.Fatalf("menuNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("menuNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFlags(t *testing.T) {
	if !FlagDefault.wantsWakeLock() {
		t.Error("default flags keep the device awake")
	}
	if FlagInsomniaSafe.wantsWakeLock() {
		t.Error("insomnia-safe apps do not hold the wake-lock")
	}
}
