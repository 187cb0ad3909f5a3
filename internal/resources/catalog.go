package resources

import (
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/api"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/model"
)

func Users(requester api.Requester) *Resource[model.User] {
	return New[model.User](requester, "users", "/api/users/", map[string]string{
		"full_name":   "first_name",
		"joined":      "date_joined",
		"date_joined": "date_joined",
	})
}

func Courses(requester api.Requester) *Resource[model.Course] {
	return New[model.Course](requester, "courses", "/api/courses/", map[string]string{
		"teacher":  "teacher__first_name",
		"category": "category__name",
		"created":  "created_at",
	})
}

func Notes(requester api.Requester) *Resource[model.Note] {
	return New[model.Note](requester, "notes", "/api/notes/", map[string]string{
		"seller":  "seller__first_name",
		"created": "created_at",
	})
}

func NoteOrders(requester api.Requester) *Resource[model.NoteOrder] {
	return New[model.NoteOrder](requester, "note_orders", "/api/notes/orders/", map[string]string{
		"note":    "note__title",
		"buyer":   "buyer__email",
		"created": "created_at",
	})
}
