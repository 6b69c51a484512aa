package model

// Genre is a reference value a song may be tagged with.
type Genre struct {
	Name string `json:"name" gorm:"primaryKey;size:64"`
}

// TableName 指定表名
func (Genre) TableName() string {
	return "genres"
}

// DefaultGenres seeds an empty library.
var DefaultGenres = []string{
	"Blues", "Classical", "Country", "Electronic", "Folk", "Hip Hop",
	"Jazz", "Metal", "Pop", "Punk", "R&B", "Reggae", "Rock", "Soul",
}
