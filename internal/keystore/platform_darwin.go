//go:build darwin

package keystore

func platformDefault(cfg KeyringConfig) (Store, error) {
	return NewKeychain(cfg.ServiceName), nil
}

func openKeychain(cfg KeyringConfig) (Store, error) {
	return NewKeychain(cfg.ServiceName), nil
}
