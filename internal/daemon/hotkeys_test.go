package daemon

import "testing"

func TestHotkeyTableAddRemove(t *testing.T) {
	tbl := make(hotkeyTable)
	key := HotkeyKey{DeviceID: 1, Type: 1, Code: 30, Value: 1}
	tbl.add(key, "echo hi")

	if cmd := tbl[key]; cmd != "echo hi" {
		t.Fatalf("got %q, want %q", cmd, "echo hi")
	}
	if !tbl.remove(key) {
		t.Fatal("expected remove to report the key existed")
	}
	if tbl.remove(key) {
		t.Fatal("expected a second remove to report false")
	}
}

func TestHotkeyTableRemoveForInput(t *testing.T) {
	tbl := make(hotkeyTable)
	tbl.add(HotkeyKey{DeviceID: 1, Code: 30}, "a")
	tbl.add(HotkeyKey{DeviceID: 1, Code: 31}, "b")
	tbl.add(HotkeyKey{DeviceID: 2, Code: 30}, "c")

	tbl.removeForInput(1)

	if len(tbl) != 1 {
		t.Fatalf("expected 1 surviving hotkey, got %d", len(tbl))
	}
	if _, ok := tbl[HotkeyKey{DeviceID: 2, Code: 30}]; !ok {
		t.Fatal("hotkey belonging to a different device was wrongly removed")
	}
}
