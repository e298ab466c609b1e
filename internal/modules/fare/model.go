// README: Rider categories and fare quote input.
package fare

// Category is a rider fare class. Protected classes (senior, disabled,
// child) ride at the reduced base rate, veterans ride free.
type Category string

const (
	CategoryStandard Category = "standard"
	CategorySenior   Category = "senior"
	CategoryDisabled Category = "disabled"
	CategoryChild    Category = "child"
	CategoryStudent  Category = "student"
	CategoryVeteran  Category = "veteran"
)

func ValidCategory(c Category) bool {
	switch c {
	case CategoryStandard, CategorySenior, CategoryDisabled, CategoryChild, CategoryStudent, CategoryVeteran:
		return true
	}
	return false
}

type Input struct {
	Category  Category
	SameDay   bool
	Party     int
	OutOfTown bool
	Miles     float64
}
