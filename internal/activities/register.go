package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.LoadPagesActivity)
	w.RegisterActivity(a.InitializeRunActivity)
	w.RegisterActivity(a.ExtractWindowActivity)
	w.RegisterActivity(a.ApplyResultActivity)
	w.RegisterActivity(a.WriteQuestionsExportActivity)
}
