/*
Package security groups the key custody primitives protecting archived
data for Amber.

# Key Custody

Archives are encrypted with per-archive data keys, wrapped by a single
master key and persisted by the keyring:

	provider := keys.NewEnvProvider("AMBER_MASTER_KEY")
	keyring, err := keys.NewKeyring(&keys.KeyringConfig{Dir: "data/keys"}, provider)
	if err != nil {
		log.Fatal(err)
	}
	defer keyring.Close()

	keyID, dataKey, err := keyring.CreateDataKey(ctx)
	if err != nil {
		log.Fatal(err)
	}

The wrapped key file is durably on disk before CreateDataKey returns, so
an archive blob can never exist whose key was lost with the process.
Decryption resolves the key ID back through the keyring:

	dataKey, err := keyring.Resolve(ctx, keyID)
*/
package security
