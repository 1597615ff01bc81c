//go:build !unix

package rawio

// NewSender is unimplemented on non-unix platforms: raw sockets with
// IP_HDRINCL are a unix-specific facility. Windows support would need
// a WinDivert- or Npcap-backed implementation, tracked as future work.
func NewSender(cfg SenderConfig) (Sender, error) {
	return nil, ErrUnsupportedPlatform
}

// NewReceiver is unimplemented on non-unix platforms; see [NewSender].
func NewReceiver(cfg ReceiverConfig) (Receiver, error) {
	return nil, ErrUnsupportedPlatform
}
