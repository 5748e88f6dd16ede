package exit

import "fmt"

const (
	CodeOK      int = 0
	CodeErrored int = 1
	// reconcile found members whose penalty total disagrees with their ledger
	CodeDrift int = 2
)

// Carries an exit code along with an error so the app can exit correctly
type Error struct {
	Err  error
	Code int
}

func (e Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%d", e.Code)
	}

	return fmt.Sprintf("%d: %s", e.Code, e.Err.Error())
}

func (e Error) Unwrap() error {
	return e.Err
}

// Wrap an error with an exit code
func Wrap(code int, err error) error {
	return Error{Code: code, Err: err}
}
