package record

// Genres is the fixed set of genre names offered for selection. Stored items
// may carry names outside this list and still filter correctly.
var Genres = []string{
	"Action",
	"Adventure",
	"Action & Adventure",
	"Animation",
	"Comedy",
	"Crime",
	"Documentary",
	"Drama",
	"Family",
	"Fantasy",
	"History",
	"Horror",
	"Music",
	"Mystery",
	"Romance",
	"Science Fiction",
	"Sci-Fi & Fantasy",
	"Thriller",
	"War",
	"Western",
}

// IsKnownGenre reports whether name is one of the selectable Genres.
func IsKnownGenre(name string) bool {
	for _, g := range Genres {
		if g == name {
			return true
		}
	}
	return false
}
