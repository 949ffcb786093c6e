package checkout

type IDGenerator interface {
	NewID() string
}
