package config

// DefaultFitnessCategories lists the eMAG categories the shop sells in. They
// seed the fitness_categories table and are used when it is empty.
var DefaultFitnessCategories = []string{
	"Спортни протектори за тяло",
	"Шейкъри и бутилки",
	"Протеини",
	"Аминокиселини",
	"Въглехидрати",
	"Креатин",
	"Витамини и минерали",
	"Продукти за отслабване и детокс",
	"Спортни ръкавици",
	"Фитнес ластици",
	"Фитнес топки",
	"Хранителни добавки на прах",
	"Аксесоари за тренировка",
	"Други спортни добавки",
	"Други хранителни добавки",
	"Фитнес аксесоари",
}

// DefaultKeywords boosts matching for categories whose names rarely appear
// verbatim in the supplier taxonomy. Keywords are compared against normalized
// (lower-cased) tokens.
var DefaultKeywords = map[string][]string{
	"Шейкъри и бутилки":          {"шейкър", "бутилка", "блендер бутилка"},
	"Спортни протектори за тяло": {"протектор"},
	"Протеини": {
		"протеин",
		"казеин",
		"суроватъчен",
		"телешки протеин",
		"яйчен протеин",
		"растителен протеин",
	},
	"Аминокиселини": {
		"аминокиселин",
		"bcaa",
		"eaa",
		"аргинин",
		"глутамин",
		"таурин",
		"hmb",
	},
	"Въглехидрати": {
		"въглехидрат",
		"декстроза",
		"малтодекстрин",
		"оризови въглехидрати",
		"рибоза",
		"специални въглехидрати",
	},
	"Креатин":             {"креатин"},
	"Витамини и минерали": {"витамин", "минерал", "мултивитамин"},
	"Продукти за отслабване и детокс": {
		"отслабване",
		"детокс",
		"карнитин",
		"термоген",
		"диуретик",
		"синефрин",
		"ябълков оцет",
		"пируват",
		"форсколин",
	},
	"Спортни ръкавици": {"ръкавици"},
	"Фитнес ластици":   {"ластиц", "тренировъчни ластици"},
	"Фитнес топки":     {"топка"},
	"Други спортни добавки": {
		"предтренировъчни",
		"бустер",
		"стимулан",
		"хардкор",
		"igf",
		"естероид",
		"тестостерон",
		"туркестерон",
	},
	"Аксесоари за тренировка":    {"тренировка", "фитнес аксесоари"},
	"Други хранителни добавки":   {"добавки"},
	"Хранителни добавки на прах": {"прах", "добавки на прах"},
	"Фитнес аксесоари":           {"аксесоар", "фитнес"},
}
