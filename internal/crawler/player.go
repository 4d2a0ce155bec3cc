package crawler

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Keys used by the site and by derived player fields.
const (
	PlayerNameLabel   = "プレーヤー名"
	CharacterLabel    = "使用キャラクター"
	BattleRecordLabel = "battle_record"
)

// PlayerAttribute is a labeled value from the status page, optionally paired
// with an icon.
type PlayerAttribute struct {
	Text string `json:"text"`
	Img  string `json:"img,omitempty"`
}

// Character is the avatar the player currently uses. ImgData holds a data URL
// so offline viewers do not need the site.
type Character struct {
	Name    string `json:"name"`
	Img     string `json:"img"`
	ImgData string `json:"imgData,omitempty"`
}

// BattleRecord tallies net battle placements.
type BattleRecord struct {
	First  int `json:"1st"`
	Second int `json:"2nd"`
	Third  int `json:"3rd"`
	Fourth int `json:"4th"`
}

// Player holds the status page. It encodes as one flat object keyed by the
// site's labels.
type Player struct {
	Attributes   map[string]PlayerAttribute
	Order        []string
	Character    *Character
	BattleRecord *BattleRecord
}

// Set records an attribute, keeping first-seen label order.
func (p *Player) Set(label string, attr PlayerAttribute) {
	if p.Attributes == nil {
		p.Attributes = make(map[string]PlayerAttribute)
	}
	if _, ok := p.Attributes[label]; !ok {
		p.Order = append(p.Order, label)
	}
	p.Attributes[label] = attr
}

// Name returns the player name, if the status page carried one.
func (p Player) Name() string {
	return p.Attributes[PlayerNameLabel].Text
}

// IsZero reports whether nothing was parsed.
func (p Player) IsZero() bool {
	return len(p.Attributes) == 0 && p.Character == nil && p.BattleRecord == nil
}

// MarshalJSON flattens the player into label keyed pairs. Plain attributes
// encode as strings, attributes with an icon as {text, img}.
func (p Player) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(p.Attributes)+2)
	for label, attr := range p.Attributes {
		if attr.Img == "" {
			out[label] = attr.Text
			continue
		}
		out[label] = attr
	}
	if p.Character != nil {
		out[CharacterLabel] = p.Character
	}
	if p.BattleRecord != nil {
		out[BattleRecordLabel] = p.BattleRecord
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (p *Player) UnmarshalJSON(data []byte) error {
	*p = Player{}
	if string(data) == "null" {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode player: %w", err)
	}
	labels := make([]string, 0, len(raw))
	for label := range raw {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		value := raw[label]
		switch label {
		case CharacterLabel:
			var c Character
			if err := json.Unmarshal(value, &c); err != nil {
				return fmt.Errorf("decode %s: %w", label, err)
			}
			p.Character = &c
		case BattleRecordLabel:
			var b BattleRecord
			if err := json.Unmarshal(value, &b); err != nil {
				return fmt.Errorf("decode %s: %w", label, err)
			}
			p.BattleRecord = &b
		default:
			var text string
			if err := json.Unmarshal(value, &text); err == nil {
				p.Set(label, PlayerAttribute{Text: text})
				continue
			}
			var attr PlayerAttribute
			if err := json.Unmarshal(value, &attr); err != nil {
				return fmt.Errorf("decode %s: %w", label, err)
			}
			p.Set(label, attr)
		}
	}
	return nil
}
