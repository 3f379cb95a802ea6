package service

import (
	"math/rand/v2"
	"strings"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

const (
	gameModeAttributeID = "game_mode"
	randomOptionID      = "random"
)

// GenerateMatchMeta resolves the game's custom attributes against the battle
// options. pick returns a uniform index in [0, n); nil uses math/rand.
//
// Pick-random attributes draw once per series game. Select attributes show
// the chosen options in Single, except a single-select game mode of "random",
// which is drawn from the remaining options: once for a one-game series,
// otherwise once per game.
func GenerateMatchMeta(game domain.Game, opts domain.MatchOptions, pick func(n int) int) domain.MatchMeta {
	if pick == nil {
		pick = rand.IntN
	}
	series := opts.Series
	if series < 1 {
		series = 1
	}
	meta := domain.MatchMeta{
		Single: map[string]string{},
		Series: make([]map[string]string, series),
	}
	for i := range meta.Series {
		meta.Series[i] = map[string]string{}
	}

	inputs := make(map[string]domain.AttributeSelection, len(opts.CustomAttributes))
	for _, in := range opts.CustomAttributes {
		inputs[in.AttributeID] = in
	}

	for _, attr := range game.CustomAttributes {
		switch attr.Kind {
		case domain.AttributePickRandom:
			if len(attr.Options) == 0 {
				continue
			}
			for _, entry := range meta.Series {
				entry[attr.DisplayName] = attr.Options[pick(len(attr.Options))].DisplayName
			}

		case domain.AttributeSelect:
			in, ok := inputs[attr.AttributeID]
			if !ok {
				continue
			}
			if isRandomGameMode(attr, in) {
				pool := make([]domain.AttributeOption, 0, len(attr.Options))
				for _, o := range attr.Options {
					if o.OptionID != randomOptionID {
						pool = append(pool, o)
					}
				}
				if len(pool) == 0 {
					continue
				}
				if len(meta.Series) == 1 {
					meta.Single[attr.DisplayName] = pool[pick(len(pool))].DisplayName
					continue
				}
				for _, entry := range meta.Series {
					entry[attr.DisplayName] = pool[pick(len(pool))].DisplayName
				}
				continue
			}
			meta.Single[attr.DisplayName] = selectedDisplayNames(attr, in.Values)
		}
	}
	return meta
}

func isRandomGameMode(attr domain.CustomAttribute, in domain.AttributeSelection) bool {
	return attr.AttributeID == gameModeAttributeID &&
		!attr.MultiSelect &&
		len(in.Values) == 1 &&
		in.Values[0] == randomOptionID
}

// selectedDisplayNames joins the display names of the chosen options in the
// attribute's own option order.
func selectedDisplayNames(attr domain.CustomAttribute, values []string) string {
	chosen := make(map[string]bool, len(values))
	for _, v := range values {
		chosen[v] = true
	}
	names := make([]string, 0, len(values))
	for _, o := range attr.Options {
		if chosen[o.OptionID] {
			names = append(names, o.DisplayName)
		}
	}
	return strings.Join(names, ", ")
}

// validateAttributeInputs checks that every select attribute of the game has
// an input, and every input names valid options in the right shape.
func validateAttributeInputs(game domain.Game, inputs []domain.AttributeSelection) bool {
	byID := make(map[string]domain.CustomAttribute, len(game.CustomAttributes))
	for _, a := range game.CustomAttributes {
		if a.Kind == domain.AttributeSelect {
			byID[a.AttributeID] = a
		}
	}
	given := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		attr, ok := byID[in.AttributeID]
		if !ok || given[in.AttributeID] {
			return false
		}
		given[in.AttributeID] = true
		if attr.MultiSelect != in.List {
			return false
		}
		if len(in.Values) == 0 || (!attr.MultiSelect && len(in.Values) != 1) {
			return false
		}
		for _, v := range in.Values {
			if !attr.HasOption(v) {
				return false
			}
		}
	}
	return len(given) == len(byID)
}
