package models

// Sender is one of the fixed legal entities on whose behalf a return is
// filed. Each maps to its own spreadsheet tab, Drive folder and local
// ticket folder.
type Sender struct {
	Key     string // stable identifier used in callbacks, tab and folder names
	Display string // legal name shown on tickets and prompts
	CUIT    string // tax id
}

var senders = []Sender{
	{Key: "ElCholo", Display: "El Cholo Repuestos", CUIT: "30716341026"},
	{Key: "Ramirez", Display: "Ramirez Cesar y Lois Gustavo S.H.", CUIT: "30711446806"},
	{Key: "Tejada", Display: "Tejada Carlos y Gomez Juan S.H.", CUIT: "30709969699"},
}

// Senders returns the fixed sender list in presentation order.
func Senders() []Sender {
	out := make([]Sender, len(senders))
	copy(out, senders)
	return out
}

// SenderByKey resolves a sender identity by its key. The second return
// value is false for anything outside the fixed enumeration.
func SenderByKey(key string) (Sender, bool) {
	for _, s := range senders {
		if s.Key == key {
			return s, true
		}
	}
	return Sender{}, false
}

// SenderTabs lists the spreadsheet tab names that must exist, one per
// sender plus the supplier directory tab.
func SenderTabs() []string {
	tabs := make([]string, 0, len(senders)+1)
	for _, s := range senders {
		tabs = append(tabs, s.Key)
	}
	return append(tabs, SupplierTab)
}
