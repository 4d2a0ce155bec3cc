package popclass

// Tier is one band of the rating table.
type Tier struct {
	Min    float64
	Name   string
	Romaji string
	Color  string
}

// tiers is ordered from the highest minimum down; the last entry is the floor.
var tiers = []Tier{
	{Min: 91, Name: "神", Romaji: "Kami", Color: "#d0203a"},
	{Min: 79, Name: "仙人", Romaji: "Sennin", Color: "#c03050"},
	{Min: 68, Name: "将軍", Romaji: "Shogun", Color: "#c08020"},
	{Min: 59, Name: "アイドル", Romaji: "Idol", Color: "#b0a010"},
	{Min: 46, Name: "刑事", Romaji: "Keiji", Color: "#209040"},
	{Min: 34, Name: "番長", Romaji: "Bancho", Color: "#1a9080"},
	{Min: 21, Name: "小学生", Romaji: "Shogakusei", Color: "#2e70c0"},
	{Min: 0, Name: "にゃんこ", Romaji: "Nyanko", Color: "#907860"},
}

// Tiers returns a copy of the tier table, highest first.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// Lowest returns the floor tier.
func Lowest() Tier {
	return tiers[len(tiers)-1]
}

// TierFor returns the first tier whose minimum the value reaches.
func TierFor(value float64) Tier {
	for _, t := range tiers {
		if value >= t.Min {
			return t
		}
	}
	return Lowest()
}

// TierByName looks a tier up by its label.
func TierByName(name string) (Tier, bool) {
	for _, t := range tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}
