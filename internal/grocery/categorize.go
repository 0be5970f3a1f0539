// Package grocery assigns store aisles to shared list items from their
// product names. Names come from Costa Rican retailer catalogs, so Spanish
// keywords are matched first and English ones are kept for hand-typed items.
package grocery

import (
	"strings"
	"unicode"
)

const (
	Produce      = "Produce"
	Dairy        = "Dairy"
	Meat         = "Meat & Seafood"
	Bakery       = "Bakery"
	Pantry       = "Pantry"
	Frozen       = "Frozen"
	Beverages    = "Beverages"
	Snacks       = "Snacks"
	Household    = "Household"
	PersonalCare = "Personal Care"
	Baby         = "Baby"
	Pets         = "Pets"
	Other        = "Other"
)

// Categorize returns the aisle for a product name, or Other.
//
// Multi-word phrases are checked first. Otherwise the first word of the
// name that is a known keyword decides, since retailer names lead with the
// head noun ("Helado de leche" is Frozen, not Dairy). Accents, package
// sizes and simple plurals are ignored.
func Categorize(productName string) string {
	words := normalize(productName)
	if len(words) == 0 {
		return Other
	}

	joined := " " + strings.Join(words, " ") + " "
	for _, p := range phrases {
		if strings.Contains(joined, " "+p.phrase+" ") {
			return p.category
		}
	}

	for _, w := range words {
		if cat, ok := lookup(w); ok {
			return cat
		}
	}
	return Other
}

func lookup(word string) (string, bool) {
	if cat, ok := keywords[word]; ok {
		return cat, true
	}
	for _, suffix := range []string{"s", "es"} {
		if stem, ok := strings.CutSuffix(word, suffix); ok && len(stem) > 2 {
			if cat, ok := keywords[stem]; ok {
				return cat, true
			}
		}
	}
	return "", false
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

// normalize lowercases, folds accents and splits on anything that is not a
// letter. Tokens with digits ("1l", "500g", "2x1") are dropped.
func normalize(name string) []string {
	name = accentFolder.Replace(strings.ToLower(name))
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	words := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f == "" || strings.ContainsFunc(f, unicode.IsDigit) {
			continue
		}
		words = append(words, f)
	}
	return words
}

type phraseEntry struct {
	phrase   string
	category string
}

// phrases are matched on whole words, in order.
var phrases = []phraseEntry{
	{"papel higienico", Household},
	{"papel toalla", Household},
	{"toallas de papel", Household},
	{"papel aluminio", Household},
	{"bolsas de basura", Household},
	{"jabon de platos", Household},
	{"jabon en polvo", Household},
	{"pasta dental", PersonalCare},
	{"crema dental", PersonalCare},
	{"cepillo de dientes", PersonalCare},
	{"leche condensada", Pantry},
	{"leche de coco", Pantry},
	{"mantequilla de mani", Pantry},
	{"ice cream", Frozen},
	{"sour cream", Dairy},
	{"paper towels", Household},
	{"toilet paper", Household},
	{"trash bags", Household},
	{"dish soap", Household},
	{"peanut butter", Pantry},
	{"hot dogs", Meat},
}

var keywords = map[string]string{
	// Produce
	"aguacate": Produce, "banano": Produce, "platano": Produce, "manzana": Produce,
	"naranja": Produce, "limon": Produce, "mango": Produce, "pina": Produce,
	"papaya": Produce, "sandia": Produce, "melon": Produce, "fresa": Produce,
	"mora": Produce, "uva": Produce, "tomate": Produce, "papa": Produce,
	"cebolla": Produce, "ajo": Produce, "lechuga": Produce, "espinaca": Produce,
	"brocoli": Produce, "zanahoria": Produce, "apio": Produce, "pepino": Produce,
	"chile": Produce, "culantro": Produce, "yuca": Produce, "chayote": Produce,
	"zapallo": Produce, "elote": Produce, "repollo": Produce, "hongos": Produce,
	"apple": Produce, "banana": Produce, "lemon": Produce, "lime": Produce,
	"avocado": Produce, "tomato": Produce, "potato": Produce, "onion": Produce,
	"lettuce": Produce, "spinach": Produce, "carrot": Produce, "cucumber": Produce,
	"berries": Produce, "grapes": Produce,

	// Dairy
	"leche": Dairy, "queso": Dairy, "natilla": Dairy, "yogurt": Dairy,
	"yogur": Dairy, "mantequilla": Dairy, "huevo": Dairy, "crema": Dairy,
	"milk": Dairy, "cheese": Dairy, "butter": Dairy, "eggs": Dairy,

	// Meat & Seafood
	"carne": Meat, "pollo": Meat, "pechuga": Meat, "res": Meat, "cerdo": Meat, "chuleta": Meat,
	"salchicha": Meat, "salchichon": Meat, "jamon": Meat, "tocineta": Meat,
	"chorizo": Meat, "pescado": Meat, "tilapia": Meat, "atun": Meat,
	"camaron": Meat, "salmon": Meat, "bistec": Meat,
	"chicken": Meat, "beef": Meat, "pork": Meat, "bacon": Meat, "ham": Meat,
	"sausage": Meat, "fish": Meat, "shrimp": Meat, "tuna": Meat, "turkey": Meat,

	// Bakery
	"pan": Bakery, "bollo": Bakery, "tortilla": Bakery,
	"queque": Bakery, "croissant": Bakery, "bagel": Bakery,
	"bread": Bakery, "buns": Bakery, "rolls": Bakery, "muffin": Bakery,

	// Pantry
	"arroz": Pantry, "frijol": Pantry, "lenteja": Pantry, "garbanzo": Pantry,
	"pasta": Pantry, "espagueti": Pantry, "fideo": Pantry, "harina": Pantry,
	"azucar": Pantry, "sal": Pantry, "aceite": Pantry, "vinagre": Pantry,
	"salsa": Pantry, "mayonesa": Pantry, "mostaza": Pantry, "ketchup": Pantry,
	"cereal": Pantry, "avena": Pantry, "miel": Pantry, "mermelada": Pantry,
	"sopa": Pantry, "consome": Pantry, "especias": Pantry, "achiote": Pantry,
	"rice": Pantry, "beans": Pantry, "flour": Pantry, "sugar": Pantry,
	"oil": Pantry, "honey": Pantry, "oatmeal": Pantry, "soup": Pantry,

	// Frozen
	"helado": Frozen, "congelado": Frozen, "paleta": Frozen,
	"frozen": Frozen,

	// Beverages
	"agua": Beverages, "jugo": Beverages, "refresco": Beverages, "gaseosa": Beverages,
	"cafe": Beverages, "te": Beverages, "cerveza": Beverages, "vino": Beverages,
	"bebida": Beverages, "fresco": Beverages,
	"water": Beverages, "juice": Beverages, "coffee": Beverages, "tea": Beverages,
	"soda": Beverages, "beer": Beverages, "wine": Beverages,

	// Snacks
	"papitas": Snacks, "tronaditas": Snacks, "chocolate": Snacks, "confite": Snacks,
	"mani": Snacks, "palomitas": Snacks, "galleta": Snacks, "snack": Snacks,
	"chips": Snacks, "crackers": Snacks, "cookies": Snacks, "candy": Snacks,
	"popcorn": Snacks,

	// Household
	"detergente": Household, "cloro": Household, "desinfectante": Household,
	"suavizante": Household, "esponja": Household, "servilleta": Household,
	"lavaplatos": Household, "escoba": Household, "bombillo": Household,
	"bateria": Household, "pila": Household,
	"detergent": Household, "bleach": Household, "sponges": Household,
	"napkins": Household, "batteries": Household,

	// Personal Care
	"champu": PersonalCare, "shampoo": PersonalCare, "acondicionador": PersonalCare,
	"desodorante": PersonalCare, "jabon": PersonalCare,
	"bloqueador": PersonalCare, "rasuradora": PersonalCare, "toallas": PersonalCare,
	"conditioner": PersonalCare, "soap": PersonalCare, "toothpaste": PersonalCare,
	"deodorant": PersonalCare, "lotion": PersonalCare, "sunscreen": PersonalCare,

	// Baby
	"panal": Baby, "panales": Baby, "toallitas": Baby, "formula": Baby,
	"diapers": Baby, "wipes": Baby,

	// Pets
	"perro": Pets, "gato": Pets, "mascota": Pets, "arena": Pets,
}
