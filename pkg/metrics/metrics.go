package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "studyhub"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	DocumentsUploaded = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "documents_uploaded_total", Help: "Document records created through the catalog."},
	)
	UploadFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "upload_failures_total", Help: "Failed uploads by saga stage (store, resolve, insert)."},
		[]string{"stage"},
	)
	OrphanedBlobs = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "orphaned_blobs_total", Help: "Blobs stored whose record insert failed afterwards."},
	)
	QuestionsAsked = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "questions_asked_total", Help: "Question records created."},
	)
	AnswersAppended = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "answers_appended_total", Help: "Answers appended to question threads."},
	)
	SnapshotsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "snapshots_delivered_total", Help: "Live-query snapshots delivered to subscribers by collection."},
		[]string{"collection"},
	)
	ValidationRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "validation_rejected_total", Help: "Operations rejected by presence checks."},
		[]string{"operation"},
	)
	RemoteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "remote_errors_total", Help: "Remote store call failures by operation."},
		[]string{"operation"},
	)
	ActiveWorkspaces = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "active_workspaces", Help: "Workspaces currently held in memory."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(DocumentsUploaded)
	reg.MustRegister(UploadFailures)
	reg.MustRegister(OrphanedBlobs)
	reg.MustRegister(QuestionsAsked)
	reg.MustRegister(AnswersAppended)
	reg.MustRegister(SnapshotsDelivered)
	reg.MustRegister(ValidationRejected)
	reg.MustRegister(RemoteErrors)
	reg.MustRegister(ActiveWorkspaces)
}
