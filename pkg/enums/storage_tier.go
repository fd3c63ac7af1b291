package enums

// StorageTier identifies which backing store accepted a write.
type StorageTier string

const (
	StorageTierRemote StorageTier = "remote"
	StorageTierLocal  StorageTier = "local"
)

// String implements fmt.Stringer.
func (s StorageTier) String() string {
	return string(s)
}
