package entities

// ContainerKind is the structural format detected from magic bytes
type ContainerKind string

// Container kinds
const (
	ContainerPE    ContainerKind = "PE"
	ContainerELF   ContainerKind = "ELF"
	ContainerOther ContainerKind = "Other"
)
