//go:build !darwin

package keystore

func platformDefault(cfg KeyringConfig) (Store, error) {
	return OpenKeyring(cfg)
}

func openKeychain(KeyringConfig) (Store, error) {
	return nil, ErrUnsupported
}
