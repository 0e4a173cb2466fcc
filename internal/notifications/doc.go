// Package notifications delivers ntfy push notifications for task outcomes.
package notifications
