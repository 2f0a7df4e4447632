package meta

import (
	"fmt"
	"runtime"
	"sync"
	"testing"

	merr "github.com/keystone-orm/keystone/internal/meta/errors"
)

func TestManagerRegistry(t *testing.T) {
	t.Run("duplicate class registration fails", func(t *testing.T) {
		mgr := NewMetaDataManager()
		cmd := NewClassMetaData("app", "Account")
		mustRegister(t, mgr, cmd)

		err := mgr.Register(NewClassMetaData("app", "Account"))
		var mdErr *merr.MetaDataError
		if err == nil || !asMetaDataError(err, &mdErr) || mdErr.Code != merr.ErrDuplicateClass {
			t.Errorf("expected %s, got %v", merr.ErrDuplicateClass, err)
		}
	})

	t.Run("duplicate entity name fails", func(t *testing.T) {
		mgr := NewMetaDataManager()
		a := NewClassMetaData("app", "Account")
		b := NewClassMetaData("billing", "Account")
		mustRegister(t, mgr, a)

		err := mgr.Register(b)
		var mdErr *merr.MetaDataError
		if err == nil || !asMetaDataError(err, &mdErr) || mdErr.Code != merr.ErrDuplicateEntityName {
			t.Errorf("expected %s, got %v", merr.ErrDuplicateEntityName, err)
		}
	})

	t.Run("unknown class lookup fails", func(t *testing.T) {
		mgr := NewMetaDataManager()
		_, err := mgr.MetaDataForClass("app.Nope")
		var mdErr *merr.MetaDataError
		if err == nil || !asMetaDataError(err, &mdErr) || mdErr.Code != merr.ErrClassNotRegistered {
			t.Errorf("expected %s, got %v", merr.ErrClassNotRegistered, err)
		}
	})

	t.Run("lookup by entity name", func(t *testing.T) {
		mgr := NewMetaDataManager()
		cmd := NewClassMetaData("app", "Account")
		cmd.EntityName = "Acct"
		mustAdd(t, cmd, newPKMember("id", KindLong))
		mustRegister(t, mgr, cmd)

		resolved, err := mgr.MetaDataForEntityName("Acct")
		if err != nil {
			t.Fatal(err)
		}
		if resolved.FullName != "app.Account" {
			t.Errorf("expected app.Account, got %s", resolved.FullName)
		}
		if !resolved.IsInitialised() {
			t.Error("entity-name lookup should resolve the descriptor")
		}
	})

	t.Run("lookup is idempotent", func(t *testing.T) {
		mgr := NewMetaDataManager()
		cmd := NewClassMetaData("app", "Account")
		mustAdd(t, cmd, newPKMember("id", KindLong))
		mustRegister(t, mgr, cmd)

		first := mustResolve(t, mgr, "app.Account")
		second := mustResolve(t, mgr, "app.Account")
		if first != second {
			t.Error("expected the same descriptor instance")
		}
	})
}

func TestManagerDiscriminatorLookup(t *testing.T) {
	setup := func(t *testing.T) *MetaDataManager {
		t.Helper()
		mgr := NewMetaDataManager(WithTreeStrategy(TreeSingleTable))
		parent := NewClassMetaData("app", "Vehicle")
		mustAdd(t, parent, newPKMember("id", KindLong))
		if err := parent.SetDiscriminator(&DiscriminatorMetaData{
			Strategy: DiscriminatorValueMap,
			Value:    "V",
		}); err != nil {
			t.Fatal(err)
		}
		car := NewClassMetaData("app", "Car")
		car.SuperclassName = "app.Vehicle"
		if err := car.SetDiscriminator(&DiscriminatorMetaData{Value: "C"}); err != nil {
			t.Fatal(err)
		}
		truck := NewClassMetaData("app", "Truck")
		truck.SuperclassName = "app.Vehicle"
		if err := truck.SetDiscriminator(&DiscriminatorMetaData{Value: "T"}); err != nil {
			t.Fatal(err)
		}
		mustRegister(t, mgr, parent, car, truck)
		return mgr
	}

	t.Run("value resolves to subclass", func(t *testing.T) {
		mgr := setup(t)
		cmd, err := mgr.MetaDataForDiscriminator("app.Vehicle", "T")
		if err != nil {
			t.Fatal(err)
		}
		if cmd.FullName != "app.Truck" {
			t.Errorf("expected app.Truck, got %s", cmd.FullName)
		}
	})

	t.Run("unknown value fails", func(t *testing.T) {
		mgr := setup(t)
		if _, err := mgr.MetaDataForDiscriminator("app.Vehicle", "X"); err == nil {
			t.Error("expected error for unknown discriminator value")
		}
	})
}

func TestManagerSubclasses(t *testing.T) {
	setup := func(t *testing.T) *MetaDataManager {
		t.Helper()
		mgr := NewMetaDataManager(WithTreeStrategy(TreeJoined))
		parent := NewClassMetaData("app", "Vehicle")
		mustAdd(t, parent, newPKMember("id", KindLong))
		car := NewClassMetaData("app", "Car")
		car.SuperclassName = "app.Vehicle"
		sports := NewClassMetaData("app", "SportsCar")
		sports.SuperclassName = "app.Car"
		mustRegister(t, mgr, parent, car, sports)
		return mgr
	}

	t.Run("direct subclasses", func(t *testing.T) {
		mgr := setup(t)
		subs := mgr.SubclassesForClass("app.Vehicle", true)
		if len(subs) != 1 || subs[0] != "app.Car" {
			t.Errorf("unexpected direct subclasses: %v", subs)
		}
	})

	t.Run("transitive subclasses", func(t *testing.T) {
		mgr := setup(t)
		subs := mgr.SubclassesForClass("app.Vehicle", false)
		if len(subs) != 2 {
			t.Errorf("unexpected transitive subclasses: %v", subs)
		}
	})

	t.Run("cache invalidated by registration", func(t *testing.T) {
		mgr := setup(t)
		if subs := mgr.SubclassesForClass("app.Vehicle", false); len(subs) != 2 {
			t.Fatalf("unexpected subclasses: %v", subs)
		}

		bike := NewClassMetaData("app", "Bike")
		bike.SuperclassName = "app.Vehicle"
		mustRegister(t, mgr, bike)

		if subs := mgr.SubclassesForClass("app.Vehicle", false); len(subs) != 3 {
			t.Errorf("expected cache refresh after registration, got %v", subs)
		}
	})
}

func TestManagerDependencyOrder(t *testing.T) {
	t.Run("referenced classes come first", func(t *testing.T) {
		mgr := NewMetaDataManager(WithTreeStrategy(TreeJoined))

		customer := NewClassMetaData("app", "Customer")
		mustAdd(t, customer, newPKMember("id", KindLong))
		order := NewClassMetaData("app", "Order")
		mustAdd(t, order,
			newPKMember("id", KindLong),
			NewMemberMetaData("customer", &TypeSpec{Kind: KindReference, Target: "app.Customer"}))
		item := NewClassMetaData("app", "OrderItem")
		mustAdd(t, item,
			newPKMember("id", KindLong),
			NewMemberMetaData("order", &TypeSpec{Kind: KindReference, Target: "app.Order"}))
		mustRegister(t, mgr, order, item, customer)

		ordered, err := mgr.OrderedReferencedClasses()
		if err != nil {
			t.Fatal(err)
		}

		pos := make(map[string]int)
		for i, cmd := range ordered {
			pos[cmd.FullName] = i
		}
		if pos["app.Customer"] > pos["app.Order"] {
			t.Error("Customer should precede Order")
		}
		if pos["app.Order"] > pos["app.OrderItem"] {
			t.Error("Order should precede OrderItem")
		}
	})

	t.Run("relation cycles are tolerated", func(t *testing.T) {
		mgr := NewMetaDataManager(WithTreeStrategy(TreeJoined))
		a := NewClassMetaData("app", "Team")
		mustAdd(t, a,
			newPKMember("id", KindLong),
			NewMemberMetaData("captain", &TypeSpec{Kind: KindReference, Target: "app.Player"}))
		b := NewClassMetaData("app", "Player")
		mustAdd(t, b,
			newPKMember("id", KindLong),
			NewMemberMetaData("team", &TypeSpec{Kind: KindReference, Target: "app.Team"}))
		mustRegister(t, mgr, a, b)

		ordered, err := mgr.OrderedReferencedClasses()
		if err != nil {
			t.Fatal(err)
		}
		if len(ordered) != 2 {
			t.Errorf("expected both classes in the order, got %d", len(ordered))
		}
	})
}

func TestManagerLazyResolutionOrder(t *testing.T) {
	setup := func(t *testing.T) *MetaDataManager {
		t.Helper()
		mgr := NewMetaDataManager(WithTreeStrategy(TreeJoined))
		parent := NewClassMetaData("app", "Vehicle")
		mustAdd(t, parent, newPKMember("id", KindLong))
		child := NewClassMetaData("app", "Truck")
		child.SuperclassName = "app.Vehicle"
		mustAdd(t, child, newMember("payload", KindDouble))
		mustRegister(t, mgr, parent, child)
		return mgr
	}

	t.Run("subclass resolves after its superclass", func(t *testing.T) {
		mgr := setup(t)
		resolvedParent := mustResolve(t, mgr, "app.Vehicle")
		if !resolvedParent.IsInitialised() {
			t.Fatal("superclass should be initialised")
		}

		resolvedChild := mustResolve(t, mgr, "app.Truck")
		if resolvedChild.Superclass() != resolvedParent {
			t.Error("expected child to link the already-resolved superclass")
		}
	})

	t.Run("resolve all after partial resolution", func(t *testing.T) {
		mgr := setup(t)
		mustResolve(t, mgr, "app.Vehicle")
		if err := mgr.ResolveAll(); err != nil {
			t.Fatalf("ResolveAll: %v", err)
		}
		if err := mgr.ResolveAll(); err != nil {
			t.Fatalf("repeated ResolveAll: %v", err)
		}
	})
}

func TestManagerNewObjectID(t *testing.T) {
	mgr := NewMetaDataManager()
	entry := NewClassMetaData("app", "AuditEntry")
	mustAdd(t, entry, newMember("message", KindString))
	acct := NewClassMetaData("app", "Account")
	mustAdd(t, acct, newPKMember("id", KindLong))
	mustRegister(t, mgr, entry, acct)

	t.Run("datastore identity issues distinct keys", func(t *testing.T) {
		first, err := mgr.NewObjectID("app.AuditEntry")
		if err != nil {
			t.Fatal(err)
		}
		second, err := mgr.NewObjectID("app.AuditEntry")
		if err != nil {
			t.Fatal(err)
		}
		if first.Key == "" || first.Key == second.Key {
			t.Errorf("expected distinct non-empty keys, got %q and %q", first.Key, second.Key)
		}
		if first.Class != "app.AuditEntry" {
			t.Errorf("expected class app.AuditEntry, got %s", first.Class)
		}
		if want := first.Key + "[app.AuditEntry]"; first.String() != want {
			t.Errorf("expected %s, got %s", want, first.String())
		}
	})

	t.Run("application identity fails", func(t *testing.T) {
		_, err := mgr.NewObjectID("app.Account")
		var mdErr *merr.MetaDataError
		if err == nil || !asMetaDataError(err, &mdErr) || mdErr.Code != merr.ErrNotDatastoreIdentity {
			t.Errorf("expected %s, got %v", merr.ErrNotDatastoreIdentity, err)
		}
	})

	t.Run("unknown class fails", func(t *testing.T) {
		_, err := mgr.NewObjectID("app.Nope")
		var mdErr *merr.MetaDataError
		if err == nil || !asMetaDataError(err, &mdErr) || mdErr.Code != merr.ErrClassNotRegistered {
			t.Errorf("expected %s, got %v", merr.ErrClassNotRegistered, err)
		}
	})
}

func TestManagerConcurrentAccess(t *testing.T) {
	mgr := NewMetaDataManager(WithTreeStrategy(TreeJoined))

	var names []string
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("Entity%02d", i)
		cmd := NewClassMetaData("app", name)
		if i > 0 {
			cmd.SuperclassName = "app.Entity00"
			mustAdd(t, cmd, newMember(fmt.Sprintf("field%02d", i), KindString))
		} else {
			mustAdd(t, cmd, newPKMember("id", KindLong), newMember("payload", KindString))
		}
		if i == 0 {
			if err := cmd.SetDiscriminator(&DiscriminatorMetaData{
				Strategy: DiscriminatorClassName,
			}); err != nil {
				t.Fatal(err)
			}
		}
		mustRegister(t, mgr, cmd)
		names = append(names, cmd.FullName)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 200)
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for _, name := range names {
				cmd, err := mgr.MetaDataForClass(name)
				if err != nil {
					errCh <- err
					return
				}
				if !cmd.IsInitialised() {
					errCh <- fmt.Errorf("%s returned uninitialised", name)
					return
				}
				if _, err := cmd.PKMemberPositions(); err != nil {
					errCh <- err
					return
				}
				mgr.SubclassesForClass("app.Entity00", false)
			}
		}(g)
	}

	// Lock-free readers racing the pipeline: once the terminal state is
	// observed, the position tables must be visible.
	descriptors := mgr.Classes()
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, cmd := range descriptors {
				for !cmd.IsInitialised() {
					runtime.Gosched()
				}
				if _, err := cmd.MemberCount(); err != nil {
					errCh <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Error(err)
	}
}
