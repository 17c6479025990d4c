package task

import (
	"math/rand/v2"
	"strconv"
)

// Word lists for human-readable identifiers (Color + Animal + City).
var (
	colors = []string{
		"Red", "Blue", "Green", "Gold", "Silver", "Amber", "Azure", "Black", "White", "Coral",
		"Crimson", "Cyan", "Emerald", "Fuchsia", "Gray", "Indigo", "Ivory", "Jade", "Lemon", "Lilac",
		"Lime", "Magenta", "Maroon", "Mint", "Navy", "Olive", "Orange", "Orchid", "Peach", "Pearl",
		"Pink", "Plum", "Purple", "Rose", "Ruby", "Rust", "Sage", "Sand", "Scarlet", "Slate",
		"Snow", "Steel", "Teal", "Topaz", "Turquoise", "Violet", "Wine", "Onyx", "Cobalt", "Honey",
		"Copper", "Bronze", "Saffron", "Cerise", "Mauve", "Tan", "Khaki", "Charcoal", "Cream", "Blush",
	}
	animals = []string{
		"Tiger", "Eagle", "Wolf", "Bear", "Falcon", "Hawk", "Lion", "Shark", "Whale", "Cobra",
		"Panda", "Fox", "Otter", "Raven", "Lynx", "Bison", "Crane", "Drake", "Gecko", "Heron",
		"Ibis", "Jaguar", "Koala", "Lemur", "Moose", "Newt", "Owl", "Puma", "Quail", "Robin",
		"Seal", "Toucan", "Viper", "Wren", "Yak", "Zebra", "Parrot", "Salmon", "Mantis", "Hornet",
		"Badger", "Camel", "Dingo", "Ferret", "Gorilla", "Hyena", "Iguana", "Jackal", "Kite", "Lark",
		"Marten", "Narwhal", "Osprey", "Pelican", "Rhino", "Stork", "Turtle", "Urchin", "Vulture", "Wombat",
	}
	cities = []string{
		"Paris", "Tokyo", "Cairo", "Milan", "Seoul", "Lima", "Oslo", "Rome", "Baku", "Doha",
		"Dublin", "Kyoto", "Lagos", "Minsk", "Nairobi", "Perth", "Quito", "Riga", "Sofia", "Tunis",
		"Vienna", "Warsaw", "Zurich", "Athens", "Berlin", "Bogota", "Denver", "Hanoi", "Jakarta", "Lisbon",
		"Madrid", "Naples", "Osaka", "Prague", "Salem", "Taipei", "Utrecht", "Venice", "Xiamen", "Yangon",
		"Accra", "Bern", "Cork", "Delhi", "Fargo", "Geneva", "Havana", "Izmir", "Jeddah", "Kigali",
		"Lyon", "Mumbai", "Nice", "Odessa", "Porto", "Rabat", "Sochi", "Tirana", "Ulan", "Varna",
	}
)

const maxIdentifierAttempts = 1000

// GenerateIdentifier picks a mnemonic not present in existing. After
// maxIdentifierAttempts collisions it appends a numeric suffix, counting up
// from a random start until the result is unused.
func GenerateIdentifier(existing map[string]struct{}) string {
	for range maxIdentifierAttempts {
		id := mnemonic()
		if _, taken := existing[id]; !taken {
			return id
		}
	}
	return withSuffix(mnemonic(), rand.IntN(9999), existing)
}

func withSuffix(stem string, n int, existing map[string]struct{}) string {
	for ; ; n++ {
		id := stem + strconv.Itoa(n)
		if _, taken := existing[id]; !taken {
			return id
		}
	}
}

func mnemonic() string {
	return colors[rand.IntN(len(colors))] + animals[rand.IntN(len(animals))] + cities[rand.IntN(len(cities))]
}
