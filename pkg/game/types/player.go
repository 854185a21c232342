package types

import (
	"github.com/cbodonnell/evervoid/pkg/config"
	"github.com/cbodonnell/evervoid/pkg/value"
)

// NeutralPlayer owns the star and unclaimed planets.
const NeutralPlayer = "neutral"

const neutralColor = "grey"

type Color struct {
	Red   float64
	Green float64
	Blue  float64
	Alpha float64
}

func ColorFromData(c config.ColorData) Color {
	return Color{Red: c.Red, Green: c.Green, Blue: c.Blue, Alpha: c.Alpha}
}

func (c Color) ToValue() *value.Value {
	return value.NewObject().
		Set("red", value.Float(c.Red)).
		Set("green", value.Float(c.Green)).
		Set("blue", value.Float(c.Blue)).
		Set("alpha", value.Float(c.Alpha))
}

func ColorFromValue(v *value.Value) (Color, error) {
	var c Color
	var err error
	for _, f := range []struct {
		key string
		dst *float64
	}{{"red", &c.Red}, {"green", &c.Green}, {"blue", &c.Blue}, {"alpha", &c.Alpha}} {
		if *f.dst, err = v.FloatAttr(f.key); err != nil {
			return Color{}, constructionErr("color", err)
		}
	}
	return c, nil
}

type Player struct {
	Name      string
	Race      string
	ColorName string
	Color     Color
	Resources ResourceAmount
	Defeated  bool
}

func (p *Player) IsNeutral() bool {
	return p.Name == NeutralPlayer
}

func (p *Player) Clone() *Player {
	c := *p
	c.Resources = p.Resources.Clone()
	return &c
}

func (p *Player) ToValue() *value.Value {
	return value.NewObject().
		Set("name", value.String(p.Name)).
		Set("race", value.String(p.Race)).
		Set("color", value.String(p.ColorName)).
		Set("resources", p.Resources.ToValue()).
		Set("defeated", value.Bool(p.Defeated))
}

// PlayerFromValue builds a player, resolving its colour and race against
// the game data.
func PlayerFromValue(v *value.Value, data *config.GameData) (*Player, error) {
	name, err := v.StringAttr("name")
	if err != nil {
		return nil, constructionErr("player", err)
	}
	race, err := v.StringAttr("race")
	if err != nil {
		return nil, constructionErr("player", err)
	}
	colorName, err := v.StringAttr("color")
	if err != nil {
		return nil, constructionErr("player", err)
	}
	resourcesValue, err := v.ObjectAttr("resources")
	if err != nil {
		return nil, constructionErr("player", err)
	}
	resources, err := ResourceAmountFromValue(resourcesValue)
	if err != nil {
		return nil, err
	}
	defeated, err := v.BoolAttr("defeated")
	if err != nil {
		return nil, constructionErr("player", err)
	}
	if name != NeutralPlayer {
		if _, ok := data.Race(race); !ok {
			return nil, constructionErrf("player", "unknown race %q for %s", race, name)
		}
	}
	c, ok := data.Color(colorName)
	if !ok && name != NeutralPlayer {
		return nil, constructionErrf("player", "unknown color %q for %s", colorName, name)
	}
	return &Player{
		Name:      name,
		Race:      race,
		ColorName: colorName,
		Color:     ColorFromData(c),
		Resources: resources,
		Defeated:  defeated,
	}, nil
}

func newNeutralPlayer(data *config.GameData) *Player {
	c, _ := data.Color(neutralColor)
	return &Player{
		Name:      NeutralPlayer,
		ColorName: neutralColor,
		Color:     ColorFromData(c),
		Resources: ResourceAmount{},
	}
}
