// catalog.go declares every entity type the dashboard manages. This is the
// single source of truth the validator, reference checker, schema endpoint,
// and storage wiring all read from. Adding a record type to the game means
// adding a declaration here plus a migration for its collection.
package model

// EntityInventories is the one PerOwnerShard type: each character's
// inventory lives in its own physical collection keyed by the folded
// character display name.
const EntityInventories = "inventories"

// Catalog returns the full set of entity type declarations.
func Catalog() []*EntityType {
	return []*EntityType{
		{
			Name:       "characters",
			Collection: "characters",
			Strategy:   Shared,
			Fields: []FieldDescriptor{
				{Name: "name", Kind: KindString, Required: true, MinLen: 1, MaxLen: 80},
				{Name: "player_id", Kind: KindIdentifier, Required: true},
				{Name: "class", Kind: KindString, Enum: []string{"fighter", "rogue", "mage", "cleric", "bard", "ranger"}},
				{Name: "level", Kind: KindNumber, Default: float64(1), Min: floatPtr(1), Max: floatPtr(100)},
				{Name: "bio", Kind: KindString, MaxLen: 4000},
				{Name: "icon", Kind: KindString},
				{Name: "active", Kind: KindBoolean, Default: true},
				{Name: "faction_id", Kind: KindIdentifier, Ref: "factions"},
				{Name: "title_ids", Kind: KindArray, Ref: "titles"},
				{Name: "stats", Kind: KindObject},
			},
			// player_id is attached by the Discord account link flow after
			// the character record exists.
			CreateExempt: []string{"player_id"},
		},
		{
			Name:       "items",
			Collection: "items",
			Strategy:   Shared,
			Fields: []FieldDescriptor{
				{Name: "name", Kind: KindString, Required: true, MinLen: 1, MaxLen: 120},
				{Name: "description", Kind: KindString, MaxLen: 4000},
				{Name: "rarity", Kind: KindString, Required: true, Default: "common", Enum: []string{"common", "uncommon", "rare", "epic", "legendary"}},
				{Name: "value", Kind: KindNumber, Min: floatPtr(0)},
				{Name: "stackable", Kind: KindBoolean, Default: false},
				{Name: "tags", Kind: KindArray},
				{Name: "effects", Kind: KindObject},
				{Name: "metadata", Kind: KindAny},
			},
		},
		{
			Name:       "quests",
			Collection: "quests",
			Strategy:   Shared,
			Fields: []FieldDescriptor{
				{Name: "title", Kind: KindString, Required: true, MinLen: 1, MaxLen: 160},
				{Name: "description", Kind: KindString, MaxLen: 8000},
				{Name: "status", Kind: KindString, Required: true, Default: "draft", Enum: []string{"draft", "open", "active", "completed", "archived"}},
				{Name: "giver_npc_id", Kind: KindIdentifier, Ref: "npcs"},
				{Name: "reward_item_ids", Kind: KindArray, Ref: "items"},
				{Name: "reward_gold", Kind: KindNumber, Min: floatPtr(0)},
				{Name: "deadline", Kind: KindDate},
			},
		},
		{
			Name:       "npcs",
			Collection: "npcs",
			Strategy:   Shared,
			Fields: []FieldDescriptor{
				{Name: "name", Kind: KindString, Required: true, MinLen: 1, MaxLen: 80},
				{Name: "location_id", Kind: KindIdentifier, Ref: "locations"},
				{Name: "disposition", Kind: KindString, Enum: []string{"friendly", "neutral", "hostile"}},
				{Name: "portrait", Kind: KindString},
				{Name: "stats", Kind: KindObject},
				{Name: "dialogue", Kind: KindArray},
			},
		},
		{
			Name:       "locations",
			Collection: "locations",
			Strategy:   Shared,
			Fields: []FieldDescriptor{
				{Name: "name", Kind: KindString, Required: true, MinLen: 1, MaxLen: 120},
				{Name: "region", Kind: KindString},
				{Name: "description", Kind: KindString, MaxLen: 8000},
				{Name: "map_url", Kind: KindString},
				{Name: "connected_location_ids", Kind: KindArray, Ref: "locations"},
			},
		},
		{
			Name:       "factions",
			Collection: "factions",
			Strategy:   Shared,
			Fields: []FieldDescriptor{
				{Name: "name", Kind: KindString, Required: true, MinLen: 1, MaxLen: 80},
				{Name: "motto", Kind: KindString, MaxLen: 300},
				{Name: "leader_npc_id", Kind: KindIdentifier, Ref: "npcs"},
				{Name: "home_location_id", Kind: KindIdentifier, Ref: "locations"},
				{Name: "reputation", Kind: KindNumber, Min: floatPtr(-100), Max: floatPtr(100)},
			},
		},
		{
			Name:       "shops",
			Collection: "shops",
			Strategy:   Shared,
			Fields: []FieldDescriptor{
				{Name: "name", Kind: KindString, Required: true, MinLen: 1, MaxLen: 120},
				{Name: "location_id", Kind: KindIdentifier, Ref: "locations"},
				{Name: "keeper_npc_id", Kind: KindIdentifier, Ref: "npcs"},
				{Name: "stock_item_ids", Kind: KindArray, Ref: "items"},
				{Name: "markup", Kind: KindNumber, Default: float64(1), Min: floatPtr(0)},
				{Name: "open", Kind: KindBoolean, Default: true},
			},
		},
		{
			Name:       "spells",
			Collection: "spells",
			Strategy:   Shared,
			Fields: []FieldDescriptor{
				{Name: "name", Kind: KindString, Required: true, MinLen: 1, MaxLen: 80},
				{Name: "school", Kind: KindString, Enum: []string{"abjuration", "conjuration", "divination", "evocation", "illusion", "necromancy"}},
				{Name: "mana_cost", Kind: KindNumber, Min: floatPtr(0)},
				{Name: "components", Kind: KindArray},
				{Name: "description", Kind: KindString, MaxLen: 4000},
			},
		},
		{
			Name:       "titles",
			Collection: "titles",
			Strategy:   Shared,
			Fields: []FieldDescriptor{
				{Name: "name", Kind: KindString, Required: true, MinLen: 1, MaxLen: 80},
				{Name: "description", Kind: KindString, MaxLen: 600},
			},
		},
		{
			Name:       "announcements",
			Collection: "announcements",
			Strategy:   Shared,
			Fields: []FieldDescriptor{
				{Name: "title", Kind: KindString, Required: true, MinLen: 1, MaxLen: 160},
				{Name: "body", Kind: KindString, Required: true, MinLen: 1},
				{Name: "publish_at", Kind: KindDate},
				{Name: "author_id", Kind: KindIdentifier, Required: true},
				{Name: "pinned", Kind: KindBoolean, Default: false},
			},
			// author_id is stamped from the session by the publishing flow.
			CreateExempt: []string{"author_id"},
		},
		{
			Name:     EntityInventories,
			Strategy: PerOwnerShard,
			Fields: []FieldDescriptor{
				{Name: "name", Kind: KindString, Required: true, MinLen: 1, MaxLen: 120},
				{Name: "item_id", Kind: KindIdentifier, Ref: "items"},
				{Name: "quantity", Kind: KindNumber, Default: float64(1), Min: floatPtr(0)},
				{Name: "icon", Kind: KindString},
				{Name: "notes", Kind: KindString, MaxLen: 2000},
				{Name: "metadata", Kind: KindAny},
			},
		},
	}
}

// NewCatalogRegistry builds a registry populated with the full catalog.
// Catalog declarations are maintained by hand, so a registration failure
// here is a programming error and panics during startup.
func NewCatalogRegistry() *Registry {
	r := NewRegistry()
	for _, et := range Catalog() {
		if err := r.Register(et); err != nil {
			panic(err)
		}
	}
	return r
}
