package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions configures AdminOnlyMiddleware.
type AdminOptions struct {
	// AdminID of zero rejects every caller.
	AdminID  int64
	OnReject tele.HandlerFunc
}

// IsAdmin reports whether the sender of c is adminID.
func IsAdmin(c tele.Context, adminID int64) bool {
	u := c.Sender()
	return adminID != 0 && u != nil && u.ID == adminID
}

// AdminOnlyMiddleware passes the admin through and hands everyone else to OnReject.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			switch {
			case IsAdmin(c, opts.AdminID):
				return next(c)
			case opts.OnReject != nil:
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
