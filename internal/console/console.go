// internal/console/console.go
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"lendingdesk/internal/app"
	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
	"lendingdesk/internal/membership"
)

const optionExit = 14

var menu = []string{
	"List users",
	"List loans",
	"List books",
	"Register user",
	"Delete user",
	"List users with active loans",
	"List active loans",
	"Lend a book",
	"Return a loan",
	"Show most borrowed book",
	"Show available units",
	"Show top borrower",
	"Show average loans per borrower",
	"Exit",
}

// Console is the librarian's text menu.
type Console struct {
	lib *app.Library
	in  *bufio.Scanner
	out io.Writer
}

func New(lib *app.Library, in io.Reader, out io.Writer) *Console {
	return &Console{
		lib: lib,
		in:  bufio.NewScanner(in),
		out: out,
	}
}

// Run shows the menu until the user exits or the input ends. Operation
// errors are printed and the loop continues.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.printMenu()
		line, ok := c.readLine()
		if !ok {
			return c.in.Err()
		}

		option, err := strconv.Atoi(line)
		if err != nil || option < 1 || option > len(menu) {
			c.printf("Unknown option %q\n", line)
			continue
		}
		if option == optionExit {
			return nil
		}

		if err := c.dispatch(ctx, option); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.printf("Error: %v\n", err)
		}
	}
}

func (c *Console) dispatch(ctx context.Context, option int) error {
	switch option {
	case 1:
		return c.listUsers(ctx)
	case 2:
		loans, err := c.lib.Circulation.ListLoans(ctx)
		if err != nil {
			return err
		}
		c.printLoans(loans)
	case 3:
		books, err := c.lib.Catalog.ListBooks(ctx)
		if err != nil {
			return err
		}
		c.printBooks(books)
	case 4:
		return c.registerUser(ctx)
	case 5:
		return c.deleteUser(ctx)
	case 6:
		users, err := c.lib.Stats.UsersWithActiveLoans(ctx)
		if err != nil {
			return err
		}
		c.printf("Users with active loans:\n")
		c.printUsers(users)
	case 7:
		return c.listActiveLoans(ctx)
	case 8:
		return c.lendBook(ctx)
	case 9:
		return c.returnLoan(ctx)
	case 10:
		result, err := c.lib.Stats.MostBorrowedBook(ctx)
		if err != nil {
			return err
		}
		c.printf("Most borrowed book: %s by %s (%d loans)\n", result.Book.Title, result.Book.Author, result.Loans)
	case 11:
		books, err := c.lib.Catalog.ListAvailableBooks(ctx)
		if err != nil {
			return err
		}
		total, err := c.lib.Stats.TotalAvailableUnits(ctx)
		if err != nil {
			return err
		}
		c.printf("Available books:\n")
		c.printBooks(books)
		c.printf("Total available units: %d\n", total)
	case 12:
		result, err := c.lib.Stats.TopBorrower(ctx)
		if err != nil {
			return err
		}
		c.printf("Top borrower: %s <%s> (%d loans)\n", result.User.Name, result.User.Email, result.Loans)
	case 13:
		avg, err := c.lib.Stats.AverageActiveLoansPerBorrower(ctx)
		if err != nil {
			return err
		}
		c.printf("Average loans per borrower: %.2f\n", avg)
	}
	return nil
}

func (c *Console) listUsers(ctx context.Context) error {
	users, err := c.lib.Members.ListUsers(ctx)
	if err != nil {
		return err
	}
	c.printUsers(users)
	return nil
}

func (c *Console) listActiveLoans(ctx context.Context) error {
	loans, err := c.lib.Circulation.ListActiveLoans(ctx)
	if err != nil {
		return err
	}
	c.printf("Active loans:\n")
	c.printLoans(loans)
	return nil
}

func (c *Console) registerUser(ctx context.Context) error {
	name, err := c.prompt("User name: ")
	if err != nil {
		return err
	}
	email, err := c.prompt("User email: ")
	if err != nil {
		return err
	}

	user, err := c.lib.Members.RegisterUser(ctx, name, email)
	if err != nil {
		return err
	}
	c.printf("Registered user %d\n", user.ID)
	return nil
}

func (c *Console) deleteUser(ctx context.Context) error {
	if err := c.listUsers(ctx); err != nil {
		return err
	}
	id, err := c.promptID("ID of the user to delete: ")
	if err != nil {
		return err
	}

	if err := c.lib.Members.DeleteUser(ctx, id); err != nil {
		return err
	}
	c.printf("Deleted user %d\n", id)
	return nil
}

func (c *Console) lendBook(ctx context.Context) error {
	userID, err := c.promptID("User ID: ")
	if err != nil {
		return err
	}
	bookID, err := c.promptID("Book ID: ")
	if err != nil {
		return err
	}

	loan, err := c.lib.Circulation.CreateLoan(ctx, userID, bookID)
	if err != nil {
		return err
	}
	c.printf("Created loan %d\n", loan.ID)
	return nil
}

func (c *Console) returnLoan(ctx context.Context) error {
	if err := c.listActiveLoans(ctx); err != nil {
		return err
	}
	id, err := c.promptID("ID of the loan to return: ")
	if err != nil {
		return err
	}

	if err := c.lib.Circulation.ReturnLoan(ctx, id); err != nil {
		return err
	}
	c.printf("Returned loan %d\n", id)
	return nil
}

func (c *Console) printMenu() {
	c.printf("\nMENU:\n\n")
	for i, label := range menu {
		c.printf("%d. %s\n", i+1, label)
	}
}

func (c *Console) printUsers(users []*membership.User) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Name, u.Email)
	}
	tw.Flush()
}

func (c *Console) printBooks(books []*catalog.Book) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tYEAR\tAVAILABLE")
	for _, b := range books {
		year := "-"
		if b.PublicationYear != nil {
			year = strconv.Itoa(*b.PublicationYear)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", b.ID, b.Title, b.Author, year, b.AvailableUnits)
	}
	tw.Flush()
}

func (c *Console) printLoans(loans []*circulation.Loan) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tBOOK\tLOANED\tRETURNED")
	for _, l := range loans {
		returned := "-"
		if l.ReturnDate != nil {
			returned = l.ReturnDate.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n", l.ID, l.UserID, l.BookID, l.LoanDate.Format("2006-01-02"), returned)
	}
	tw.Flush()
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) readLine() (string, bool) {
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *Console) prompt(label string) (string, error) {
	c.printf("%s", label)
	line, ok := c.readLine()
	if !ok {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return line, nil
}

func (c *Console) promptID(label string) (int64, error) {
	line, err := c.prompt(label)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(line, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", line)
	}
	return id, nil
}
