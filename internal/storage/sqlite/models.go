// internal/storage/sqlite/models.go
package sqlite

import (
	"time"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
	"lendingdesk/internal/membership"
)

type bookModel struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	Title           string `gorm:"not null"`
	Author          string `gorm:"not null"`
	PublicationYear *int
	AvailableUnits  int `gorm:"not null;check:available_units >= 0"`
}

func (bookModel) TableName() string { return "books" }

func (m *bookModel) toDomain() *catalog.Book {
	return &catalog.Book{
		ID:              m.ID,
		Title:           m.Title,
		Author:          m.Author,
		PublicationYear: m.PublicationYear,
		AvailableUnits:  m.AvailableUnits,
	}
}

func fromBook(b *catalog.Book) *bookModel {
	return &bookModel{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		PublicationYear: b.PublicationYear,
		AvailableUnits:  b.AvailableUnits,
	}
}

type userModel struct {
	ID    int64  `gorm:"primaryKey;autoIncrement"`
	Name  string `gorm:"not null"`
	Email string `gorm:"not null"`
}

func (userModel) TableName() string { return "users" }

func (m *userModel) toDomain() *membership.User {
	return &membership.User{ID: m.ID, Name: m.Name, Email: m.Email}
}

func fromUser(u *membership.User) *userModel {
	return &userModel{ID: u.ID, Name: u.Name, Email: u.Email}
}

type loanModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	UserID     int64     `gorm:"not null;index"`
	BookID     int64     `gorm:"not null;index"`
	LoanDate   time.Time `gorm:"not null"`
	ReturnDate *time.Time

	User *userModel `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`
	Book *bookModel `gorm:"foreignKey:BookID;constraint:OnDelete:RESTRICT"`
}

func (loanModel) TableName() string { return "loans" }

func (m *loanModel) toDomain() *circulation.Loan {
	loan := &circulation.Loan{
		ID:       m.ID,
		UserID:   m.UserID,
		BookID:   m.BookID,
		LoanDate: m.LoanDate.UTC(),
	}
	if m.ReturnDate != nil {
		returned := m.ReturnDate.UTC()
		loan.ReturnDate = &returned
	}
	return loan
}

func fromLoan(l *circulation.Loan) *loanModel {
	return &loanModel{
		ID:         l.ID,
		UserID:     l.UserID,
		BookID:     l.BookID,
		LoanDate:   l.LoanDate,
		ReturnDate: l.ReturnDate,
	}
}
