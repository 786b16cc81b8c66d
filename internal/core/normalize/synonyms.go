package normalize

// categorySynonyms maps user-facing category phrasings to canonical tokens.
// The table is fixed: adding an entry widens which queries share a cache
// line, it never changes result semantics.
var categorySynonyms = map[string]string{
	"coffee shop":       "cafe",
	"coffee":            "cafe",
	"coffeehouse":       "cafe",
	"cafeteria":         "cafe",
	"dining":            "restaurant",
	"eatery":            "restaurant",
	"supermarket":       "grocery",
	"grocery shop":      "grocery",
	"grocery store":     "grocery",
	"medical store":     "pharmacy",
	"chemist":           "pharmacy",
	"sneaker store":     "shoe store",
	"shoe shop":         "shoe store",
	"clothing store":    "fashion store",
	"fashion boutique":  "fashion store",
	"book shop":         "bookstore",
	"book store":        "bookstore",
	"hair salon":        "barbershop",
	"fitness center":    "gym",
	"fitness centre":    "gym",
	"jewellery shop":    "jewelry store",
	"jewellery store":   "jewelry store",
	"lodging":           "hotel",
	"guest house":       "hotel",
	"electronics shop":  "electronics store",
}
